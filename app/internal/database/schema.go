package database

import (
	"context"
	"strings"
)

// schemaSQL uses {{id}} for the dialect's auto-increment primary key.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS domain_checks (
  id {{id}},
  name TEXT NOT NULL,
  url TEXT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('operational', 'degraded', 'down')),
  status_code INTEGER,
  response_time INTEGER,
  error_message TEXT,
  checked_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_domain_checks_name ON domain_checks(name, checked_at);
CREATE INDEX IF NOT EXISTS idx_domain_checks_checked ON domain_checks(checked_at);

CREATE TABLE IF NOT EXISTS server_checks (
  id {{id}},
  name TEXT NOT NULL,
  host TEXT NOT NULL,
  port INTEGER NOT NULL,
  type TEXT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('operational', 'degraded', 'down')),
  response_time INTEGER,
  error_message TEXT,
  checked_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_server_checks_name ON server_checks(name, checked_at);
CREATE INDEX IF NOT EXISTS idx_server_checks_checked ON server_checks(checked_at);

CREATE TABLE IF NOT EXISTS gameserver_checks (
  id {{id}},
  name TEXT NOT NULL,
  host TEXT NOT NULL,
  port INTEGER NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('operational', 'degraded', 'down')),
  players_online INTEGER NOT NULL DEFAULT 0,
  max_players INTEGER NOT NULL DEFAULT 0,
  version TEXT,
  motd TEXT,
  ping_time INTEGER NOT NULL DEFAULT 0,
  response_time INTEGER,
  error_message TEXT,
  checked_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_gameserver_checks_name ON gameserver_checks(name, checked_at);
CREATE INDEX IF NOT EXISTS idx_gameserver_checks_checked ON gameserver_checks(checked_at);

CREATE TABLE IF NOT EXISTS proxmox_nodes (
  id {{id}},
  name TEXT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('operational', 'degraded', 'down')),
  cpu_usage REAL NOT NULL DEFAULT 0,
  memory_usage REAL NOT NULL DEFAULT 0,
  disk_usage REAL NOT NULL DEFAULT 0,
  uptime BIGINT NOT NULL DEFAULT 0,
  load_average TEXT,
  response_time INTEGER,
  error_message TEXT,
  checked_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_proxmox_nodes_name ON proxmox_nodes(name, checked_at);
CREATE INDEX IF NOT EXISTS idx_proxmox_nodes_checked ON proxmox_nodes(checked_at);

CREATE TABLE IF NOT EXISTS proxmox_vms (
  id {{id}},
  node_name TEXT NOT NULL,
  vmid INTEGER NOT NULL,
  name TEXT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('operational', 'degraded', 'down')),
  vm_status TEXT NOT NULL,
  cpu_usage REAL NOT NULL DEFAULT 0,
  memory_usage REAL NOT NULL DEFAULT 0,
  response_time INTEGER,
  error_message TEXT,
  checked_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_proxmox_vms_guest ON proxmox_vms(node_name, vmid, checked_at);
CREATE INDEX IF NOT EXISTS idx_proxmox_vms_name ON proxmox_vms(name, checked_at);
CREATE INDEX IF NOT EXISTS idx_proxmox_vms_checked ON proxmox_vms(checked_at);

CREATE TABLE IF NOT EXISTS proxmox_containers (
  id {{id}},
  node_name TEXT NOT NULL,
  vmid INTEGER NOT NULL,
  name TEXT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('operational', 'degraded', 'down')),
  vm_status TEXT NOT NULL,
  cpu_usage REAL NOT NULL DEFAULT 0,
  memory_usage REAL NOT NULL DEFAULT 0,
  response_time INTEGER,
  error_message TEXT,
  checked_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_proxmox_containers_guest ON proxmox_containers(node_name, vmid, checked_at);
CREATE INDEX IF NOT EXISTS idx_proxmox_containers_name ON proxmox_containers(name, checked_at);
CREATE INDEX IF NOT EXISTS idx_proxmox_containers_checked ON proxmox_containers(checked_at);

CREATE TABLE IF NOT EXISTS notification_log (
  id {{id}},
  service_type TEXT NOT NULL,
  service_name TEXT NOT NULL,
  event_type TEXT NOT NULL CHECK (event_type IN ('down', 'up', 'degraded')),
  message TEXT NOT NULL,
  notification_sent INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  sent_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_notification_log_key ON notification_log(service_type, service_name, created_at);

CREATE TABLE IF NOT EXISTS system_logs (
  id {{id}},
  timestamp TEXT NOT NULL,
  level TEXT NOT NULL,
  category TEXT NOT NULL,
  service TEXT,
  message TEXT NOT NULL,
  details TEXT
);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON system_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_logs_level ON system_logs(level);
CREATE INDEX IF NOT EXISTS idx_logs_category ON system_logs(category);
`

// EnsureSchema creates all necessary database tables
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := strings.ReplaceAll(schemaSQL, "{{id}}", s.dialect.idColumn)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return &PersistenceError{Op: "ensure schema", Err: err}
	}
	return nil
}
