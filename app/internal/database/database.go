// Package database persists check records, alert events and operator logs.
// It runs on SQLite by default and on PostgreSQL when configured.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"infrastatus/app/internal/models"
)

// TimeLayout is fixed width so stored timestamps sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// ErrNotFound is returned when an update targets a row that does not exist.
var ErrNotFound = errors.New("not found")

// PersistenceError wraps any storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("database %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type dialect struct {
	name         string
	idColumn     string
	numberedArgs bool
}

var (
	sqliteDialect   = dialect{name: "sqlite", idColumn: "INTEGER PRIMARY KEY AUTOINCREMENT"}
	postgresDialect = dialect{name: "postgres", idColumn: "BIGSERIAL PRIMARY KEY", numberedArgs: true}
)

// Store is the persistence adapter shared by the engine and the read side.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// Open connects with the given driver ("sqlite" or "postgres") and creates
// the schema.
func Open(driver, dsn string) (*Store, error) {
	var d dialect
	switch driver {
	case "sqlite":
		d = sqliteDialect
	case "postgres":
		d = postgresDialect
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(d.name, dsn)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Err: err}
	}
	if d == sqliteDialect {
		// One connection: keeps :memory: databases alive and serializes writers.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
			db.Close()
			return nil, &PersistenceError{Op: "pragma", Err: err}
		}
	}

	s := &Store{db: db, dialect: d, now: time.Now}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &PersistenceError{Op: "ping", Err: err}
	}
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return &PersistenceError{Op: "ping", Err: err}
	}
	return nil
}

// Driver returns the dialect name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(q string) string {
	if !s.dialect.numberedArgs {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(q), args...)
}

func (s *Store) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(q), args...)
}

func (s *Store) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(q), args...)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// tableFor maps a record kind to its history table.
func tableFor(kind models.Kind) (string, error) {
	switch kind {
	case models.KindDomain:
		return "domain_checks", nil
	case models.KindServer:
		return "server_checks", nil
	case models.KindGameServer:
		return "gameserver_checks", nil
	case models.KindNode:
		return "proxmox_nodes", nil
	case models.KindVM:
		return "proxmox_vms", nil
	case models.KindContainer:
		return "proxmox_containers", nil
	}
	return "", fmt.Errorf("unknown kind %q", kind)
}
