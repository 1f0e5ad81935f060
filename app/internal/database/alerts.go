package database

import (
	"context"
	"database/sql"
	"time"

	"infrastatus/app/internal/models"
)

// CountAlertsSince counts events with the exact (kind, name, message) key
// created at or after since.
func (s *Store) CountAlertsSince(ctx context.Context, kind models.Kind, name, message string, since time.Time) (int, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM notification_log
		WHERE service_type = ? AND service_name = ? AND message = ? AND created_at >= ?`,
		string(kind), name, message, formatTime(since)).Scan(&n)
	if err != nil {
		return 0, &PersistenceError{Op: "count alerts", Err: err}
	}
	return n, nil
}

// InsertAlert stores a new unsent event and sets its ID.
func (s *Store) InsertAlert(ctx context.Context, ev *models.AlertEvent) error {
	err := s.queryRow(ctx, `INSERT INTO notification_log (service_type, service_name, event_type, message, notification_sent, created_at)
		VALUES (?,?,?,?,0,?) RETURNING id`,
		string(ev.ServiceKind), ev.ServiceName, ev.EventType, ev.Message, formatTime(ev.CreatedAt)).Scan(&ev.ID)
	if err != nil {
		return &PersistenceError{Op: "insert alert", Err: err}
	}
	return nil
}

// ListAlerts returns the newest events first.
func (s *Store) ListAlerts(ctx context.Context, unsentOnly bool, limit int) ([]models.AlertEvent, error) {
	q := `SELECT id, service_type, service_name, event_type, message, notification_sent, created_at, sent_at
		FROM notification_log`
	if unsentOnly {
		q += ` WHERE notification_sent = 0`
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.query(ctx, q, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list alerts", Err: err}
	}
	defer rows.Close()

	var out []models.AlertEvent
	for rows.Next() {
		var ev models.AlertEvent
		var kind, created string
		var sent int
		var sentAt sql.NullString
		if err := rows.Scan(&ev.ID, &kind, &ev.ServiceName, &ev.EventType, &ev.Message, &sent, &created, &sentAt); err != nil {
			return nil, &PersistenceError{Op: "list alerts", Err: err}
		}
		ev.ServiceKind = models.Kind(kind)
		ev.Sent = sent != 0
		ev.CreatedAt = parseTime(created)
		if sentAt.Valid {
			t := parseTime(sentAt.String)
			ev.SentAt = &t
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list alerts", Err: err}
	}
	return out, nil
}

// MarkAlertSent records delivery of an event by an external notifier.
func (s *Store) MarkAlertSent(ctx context.Context, id int64, at time.Time) error {
	res, err := s.exec(ctx, `UPDATE notification_log SET notification_sent = 1, sent_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return &PersistenceError{Op: "mark alert sent", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
