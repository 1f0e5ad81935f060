package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"infrastatus/app/internal/models"
)

// Append writes one check record to the table of its kind.
func (s *Store) Append(ctx context.Context, rec models.Record) error {
	var err error
	var table string
	switch r := rec.(type) {
	case models.DomainCheck:
		table = "domain_checks"
		_, err = s.exec(ctx, `INSERT INTO domain_checks (name, url, status, status_code, response_time, error_message, checked_at)
			VALUES (?,?,?,?,?,?,?)`,
			r.Target, r.URL, string(r.Status), r.StatusCode, nullInt(r.ResponseMS), nullString(r.Error), formatTime(r.CheckedAt))
	case models.ServerCheck:
		table = "server_checks"
		_, err = s.exec(ctx, `INSERT INTO server_checks (name, host, port, type, status, response_time, error_message, checked_at)
			VALUES (?,?,?,?,?,?,?,?)`,
			r.Target, r.Host, r.Port, r.Type, string(r.Status), nullInt(r.ResponseMS), nullString(r.Error), formatTime(r.CheckedAt))
	case models.GameServerCheck:
		table = "gameserver_checks"
		_, err = s.exec(ctx, `INSERT INTO gameserver_checks (name, host, port, status, players_online, max_players, version, motd, ping_time, response_time, error_message, checked_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
			r.Target, r.Host, r.Port, string(r.Status), r.PlayersOnline, r.MaxPlayers, nullString(r.Version), nullString(r.MOTD),
			r.PingMS, nullInt(r.ResponseMS), nullString(r.Error), formatTime(r.CheckedAt))
	case models.NodeCheck:
		table = "proxmox_nodes"
		load, jerr := json.Marshal(r.LoadAverage)
		if jerr != nil {
			return &PersistenceError{Op: "append " + table, Err: jerr}
		}
		_, err = s.exec(ctx, `INSERT INTO proxmox_nodes (name, status, cpu_usage, memory_usage, disk_usage, uptime, load_average, response_time, error_message, checked_at)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			r.Target, string(r.Status), r.CPUPercent, r.MemoryPercent, r.DiskPercent, r.UptimeSeconds, string(load),
			nullInt(r.ResponseMS), nullString(r.Error), formatTime(r.CheckedAt))
	case models.GuestCheck:
		table, err = tableFor(r.Kind)
		if err != nil || (r.Kind != models.KindVM && r.Kind != models.KindContainer) {
			return &PersistenceError{Op: "append guest", Err: fmt.Errorf("guest record with kind %q", r.Kind)}
		}
		_, err = s.exec(ctx, `INSERT INTO `+table+` (node_name, vmid, name, status, vm_status, cpu_usage, memory_usage, response_time, error_message, checked_at)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			r.Node, r.VMID, r.Target, string(r.Status), r.LifecycleStatus, r.CPUPercent, r.MemoryPercent,
			nullInt(r.ResponseMS), nullString(r.Error), formatTime(r.CheckedAt))
	default:
		return &PersistenceError{Op: "append", Err: fmt.Errorf("unsupported record type %T", rec)}
	}
	if err != nil {
		return &PersistenceError{Op: "append " + table, Err: err}
	}
	return nil
}

const (
	domainCols = `name, url, status, COALESCE(status_code, 0), response_time, error_message, checked_at`
	serverCols = `name, host, port, type, status, response_time, error_message, checked_at`
	gameCols   = `name, host, port, status, players_online, max_players, COALESCE(version, ''), COALESCE(motd, ''), ping_time, response_time, error_message, checked_at`
	nodeCols   = `name, status, cpu_usage, memory_usage, disk_usage, uptime, COALESCE(load_average, '[]'), response_time, error_message, checked_at`
	guestCols  = `node_name, vmid, name, status, vm_status, cpu_usage, memory_usage, response_time, error_message, checked_at`
)

type scanner interface {
	Scan(dest ...any) error
}

// common scans the trailing response_time, error_message, checked_at columns.
type common struct {
	ms      sql.NullInt64
	errMsg  sql.NullString
	checked string
}

func (c *common) fill(kind models.Kind, name, status string) models.CheckRecord {
	return models.CheckRecord{
		Kind:       kind,
		Target:     name,
		Status:     models.Status(status),
		ResponseMS: intPtr(c.ms),
		Error:      c.errMsg.String,
		CheckedAt:  parseTime(c.checked),
	}
}

func scanDomain(sc scanner) (models.DomainCheck, error) {
	var r models.DomainCheck
	var name, status string
	var c common
	err := sc.Scan(&name, &r.URL, &status, &r.StatusCode, &c.ms, &c.errMsg, &c.checked)
	r.CheckRecord = c.fill(models.KindDomain, name, status)
	return r, err
}

func scanServer(sc scanner) (models.ServerCheck, error) {
	var r models.ServerCheck
	var name, status string
	var c common
	err := sc.Scan(&name, &r.Host, &r.Port, &r.Type, &status, &c.ms, &c.errMsg, &c.checked)
	r.CheckRecord = c.fill(models.KindServer, name, status)
	return r, err
}

func scanGame(sc scanner) (models.GameServerCheck, error) {
	var r models.GameServerCheck
	var name, status string
	var c common
	err := sc.Scan(&name, &r.Host, &r.Port, &status, &r.PlayersOnline, &r.MaxPlayers, &r.Version, &r.MOTD, &r.PingMS, &c.ms, &c.errMsg, &c.checked)
	r.CheckRecord = c.fill(models.KindGameServer, name, status)
	return r, err
}

func scanNode(sc scanner) (models.NodeCheck, error) {
	var r models.NodeCheck
	var name, status, load string
	var c common
	err := sc.Scan(&name, &status, &r.CPUPercent, &r.MemoryPercent, &r.DiskPercent, &r.UptimeSeconds, &load, &c.ms, &c.errMsg, &c.checked)
	if err != nil {
		return r, err
	}
	r.CheckRecord = c.fill(models.KindNode, name, status)
	if err := json.Unmarshal([]byte(load), &r.LoadAverage); err != nil {
		r.LoadAverage = nil
	}
	return r, nil
}

func scanGuest(kind models.Kind) func(scanner) (models.GuestCheck, error) {
	return func(sc scanner) (models.GuestCheck, error) {
		var r models.GuestCheck
		var name, status string
		var c common
		err := sc.Scan(&r.Node, &r.VMID, &name, &status, &r.LifecycleStatus, &r.CPUPercent, &r.MemoryPercent, &c.ms, &c.errMsg, &c.checked)
		r.CheckRecord = c.fill(kind, name, status)
		return r, err
	}
}

// Latest returns the most recent record for a target, or nil when none exists.
func (s *Store) Latest(ctx context.Context, kind models.Kind, name string) (models.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, &PersistenceError{Op: "latest", Err: err}
	}

	var cols string
	switch kind {
	case models.KindDomain:
		cols = domainCols
	case models.KindServer:
		cols = serverCols
	case models.KindGameServer:
		cols = gameCols
	case models.KindNode:
		cols = nodeCols
	default:
		cols = guestCols
	}
	row := s.queryRow(ctx, `SELECT `+cols+` FROM `+table+` WHERE name = ? ORDER BY checked_at DESC, id DESC LIMIT 1`, name)

	var rec models.Record
	switch kind {
	case models.KindDomain:
		rec, err = scanDomain(row)
	case models.KindServer:
		rec, err = scanServer(row)
	case models.KindGameServer:
		rec, err = scanGame(row)
	case models.KindNode:
		rec, err = scanNode(row)
	default:
		rec, err = scanGuest(kind)(row)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "latest " + table, Err: err}
	}
	return rec, nil
}

// LatestNodes returns the newest record of every node checked after since.
func (s *Store) LatestNodes(ctx context.Context, since time.Time) ([]models.NodeCheck, error) {
	rows, err := s.query(ctx, `SELECT `+nodeCols+` FROM proxmox_nodes n
		WHERE n.id = (SELECT MAX(m.id) FROM proxmox_nodes m WHERE m.name = n.name AND m.checked_at > ?)
		ORDER BY n.name`, formatTime(since))
	if err != nil {
		return nil, &PersistenceError{Op: "latest nodes", Err: err}
	}
	defer rows.Close()

	var out []models.NodeCheck
	for rows.Next() {
		r, err := scanNode(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "latest nodes", Err: err}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "latest nodes", Err: err}
	}
	return out, nil
}

// LatestGuests returns the newest record of every VM or container, keyed by
// node and VMID, checked after since.
func (s *Store) LatestGuests(ctx context.Context, kind models.Kind, since time.Time) ([]models.GuestCheck, error) {
	if kind != models.KindVM && kind != models.KindContainer {
		return nil, &PersistenceError{Op: "latest guests", Err: fmt.Errorf("kind %q is not a guest", kind)}
	}
	table, _ := tableFor(kind)
	rows, err := s.query(ctx, `SELECT `+guestCols+` FROM `+table+` g
		WHERE g.id = (SELECT MAX(h.id) FROM `+table+` h WHERE h.node_name = g.node_name AND h.vmid = g.vmid AND h.checked_at > ?)
		ORDER BY g.node_name, g.vmid`, formatTime(since))
	if err != nil {
		return nil, &PersistenceError{Op: "latest " + table, Err: err}
	}
	defer rows.Close()

	scan := scanGuest(kind)
	var out []models.GuestCheck
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "latest " + table, Err: err}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "latest " + table, Err: err}
	}
	return out, nil
}

// UptimeFraction returns the share of operational records for a target since
// the given time, 0 when there are none.
func (s *Store) UptimeFraction(ctx context.Context, kind models.Kind, name string, since time.Time) (float64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, &PersistenceError{Op: "uptime", Err: err}
	}
	var total, ok int64
	err = s.queryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'operational' THEN 1 ELSE 0 END), 0)
		FROM `+table+` WHERE name = ? AND checked_at >= ?`, name, formatTime(since)).Scan(&total, &ok)
	if err != nil {
		return 0, &PersistenceError{Op: "uptime " + table, Err: err}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(ok) / float64(total), nil
}

// HistoryBuckets groups records since the given time by UTC day and target,
// newest day first, returning at most maxRows buckets.
func (s *Store) HistoryBuckets(ctx context.Context, kind models.Kind, since time.Time, maxRows int) ([]models.HistoryBucket, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, &PersistenceError{Op: "history", Err: err}
	}
	rows, err := s.query(ctx, `SELECT substr(checked_at, 1, 10) AS day, name,
			COUNT(*),
			SUM(CASE WHEN status = 'operational' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'degraded' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'down' THEN 1 ELSE 0 END),
			AVG(response_time)
		FROM `+table+`
		WHERE checked_at >= ?
		GROUP BY substr(checked_at, 1, 10), name
		ORDER BY day DESC, name
		LIMIT ?`, formatTime(since), maxRows)
	if err != nil {
		return nil, &PersistenceError{Op: "history " + table, Err: err}
	}
	defer rows.Close()

	var out []models.HistoryBucket
	for rows.Next() {
		var b models.HistoryBucket
		var avg sql.NullFloat64
		if err := rows.Scan(&b.Date, &b.Target, &b.Total, &b.Operational, &b.Degraded, &b.Down, &avg); err != nil {
			return nil, &PersistenceError{Op: "history " + table, Err: err}
		}
		if avg.Valid {
			v := avg.Float64
			b.AvgResponseMS = &v
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "history " + table, Err: err}
	}
	return out, nil
}
