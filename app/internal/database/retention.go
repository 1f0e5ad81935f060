package database

import (
	"context"
	"time"

	"infrastatus/app/internal/models"
)

// PurgeReport is the number of rows removed per table.
type PurgeReport map[string]int64

// Total sums the removed rows.
func (r PurgeReport) Total() int64 {
	var n int64
	for _, v := range r {
		n += v
	}
	return n
}

// PurgeOlderThan deletes check records and alert events older than days.
// Running it twice in a row removes nothing the second time.
func (s *Store) PurgeOlderThan(ctx context.Context, days int) (PurgeReport, error) {
	cutoff := formatTime(s.now().Add(-time.Duration(days) * 24 * time.Hour))
	report := PurgeReport{}

	for _, kind := range models.Kinds {
		table, _ := tableFor(kind)
		res, err := s.exec(ctx, `DELETE FROM `+table+` WHERE checked_at < ?`, cutoff)
		if err != nil {
			return report, &PersistenceError{Op: "purge " + table, Err: err}
		}
		report[table], _ = res.RowsAffected()
	}

	res, err := s.exec(ctx, `DELETE FROM notification_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return report, &PersistenceError{Op: "purge notification_log", Err: err}
	}
	report["notification_log"], _ = res.RowsAffected()
	return report, nil
}

// TableStats returns the total and last-24h row counts of every history table.
func (s *Store) TableStats(ctx context.Context) ([]models.TableStat, error) {
	dayAgo := formatTime(s.now().Add(-24 * time.Hour))
	out := make([]models.TableStat, 0, len(models.Kinds))
	for _, kind := range models.Kinds {
		table, _ := tableFor(kind)
		st := models.TableStat{Table: table}
		err := s.queryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(CASE WHEN checked_at >= ? THEN 1 ELSE 0 END), 0) FROM `+table, dayAgo).
			Scan(&st.TotalRows, &st.Last24Hours)
		if err != nil {
			return nil, &PersistenceError{Op: "stats " + table, Err: err}
		}
		out = append(out, st)
	}
	return out, nil
}
