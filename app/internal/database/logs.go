package database

import (
	"context"
	"time"

	"infrastatus/app/internal/models"
)

// LogLevel constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// LogCategory constants
const (
	LogCategoryCheck       = "check"
	LogCategoryAlert       = "alert"
	LogCategoryProxmox     = "proxmox"
	LogCategorySystem      = "system"
	LogCategorySchedule    = "schedule"
	LogCategoryPersistence = "persistence"
)

// InsertLog adds a new log entry
func (s *Store) InsertLog(level, category, service, message, details string) error {
	_, err := s.exec(context.Background(), `INSERT INTO system_logs (timestamp, level, category, service, message, details)
		VALUES (?, ?, ?, ?, ?, ?)`,
		formatTime(s.now()), level, category, service, message, details)
	return err
}

// GetLogs retrieves logs with optional filtering
func (s *Store) GetLogs(limit int, level, category, service string, offset int) ([]models.LogEntry, error) {
	query := `SELECT id, timestamp, level, category, COALESCE(service, ''), message, COALESCE(details, '')
		FROM system_logs WHERE 1=1`
	args := []any{}

	if level != "" {
		query += " AND level = ?"
		args = append(args, level)
	}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	if service != "" {
		query += " AND service = ?"
		args = append(args, service)
	}

	query += " ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.query(context.Background(), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.LogEntry
	for rows.Next() {
		var log models.LogEntry
		if err := rows.Scan(&log.ID, &log.Timestamp, &log.Level, &log.Category, &log.Service, &log.Message, &log.Details); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// GetLogStats returns statistics about logs
func (s *Store) GetLogStats() (*models.LogStats, error) {
	var stats models.LogStats
	err := s.queryRow(context.Background(), `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN level = 'error' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN level = 'warn' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN level = 'info' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN level = 'debug' THEN 1 ELSE 0 END), 0)
		FROM system_logs`).Scan(&stats.TotalLogs, &stats.ErrorCount, &stats.WarnCount, &stats.InfoCount, &stats.DebugCount)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ClearLogs clears logs older than specified days, or all logs if days is 0
func (s *Store) ClearLogs(days int) error {
	if days == 0 {
		_, err := s.exec(context.Background(), `DELETE FROM system_logs`)
		return err
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	_, err := s.exec(context.Background(), `DELETE FROM system_logs WHERE timestamp < ?`, formatTime(cutoff))
	return err
}

// PruneLogs removes old logs to keep the database size manageable (keeps last N logs)
func (s *Store) PruneLogs(keepCount int) error {
	_, err := s.exec(context.Background(), `DELETE FROM system_logs WHERE id NOT IN (
		SELECT id FROM system_logs ORDER BY timestamp DESC, id DESC LIMIT ?
	)`, keepCount)
	return err
}
