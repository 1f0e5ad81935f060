package models

import "time"

// Record is implemented by every kind-specific check record.
type Record interface {
	Common() CheckRecord
}

// CheckRecord holds the fields shared by every check record.
type CheckRecord struct {
	Kind       Kind      `json:"kind"`
	Target     string    `json:"name"`
	Status     Status    `json:"status"`
	ResponseMS *int      `json:"response_time,omitempty"`
	Error      string    `json:"error_message,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

func (c CheckRecord) Common() CheckRecord { return c }

type DomainCheck struct {
	CheckRecord
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
}

type ServerCheck struct {
	CheckRecord
	Host string `json:"host"`
	Port int    `json:"port"`
	Type string `json:"type"`
}

type GameServerCheck struct {
	CheckRecord
	Host          string `json:"host"`
	Port          int    `json:"port"`
	PlayersOnline int    `json:"players_online"`
	MaxPlayers    int    `json:"max_players"`
	Version       string `json:"version"`
	MOTD          string `json:"motd"`
	PingMS        int    `json:"ping_time"`
}

type NodeCheck struct {
	CheckRecord
	CPUPercent    float64   `json:"cpu_usage"`
	MemoryPercent float64   `json:"memory_usage"`
	DiskPercent   float64   `json:"disk_usage"`
	UptimeSeconds int64     `json:"uptime"`
	LoadAverage   []float64 `json:"load_average"`
	// UptimeText is filled on read, never stored.
	UptimeText string `json:"uptime_formatted,omitempty"`
}

// GuestCheck is a VM (KindVM) or container (KindContainer) record.
type GuestCheck struct {
	CheckRecord
	Node            string  `json:"node_name"`
	VMID            int     `json:"vmid"`
	LifecycleStatus string  `json:"vm_status"`
	CPUPercent      float64 `json:"cpu_usage"`
	MemoryPercent   float64 `json:"memory_usage"`
}

// Alert event types
const (
	EventDown     = "down"
	EventUp       = "up"
	EventDegraded = "degraded"
)

// AlertEvent is one row of the notification log.
type AlertEvent struct {
	ID          int64      `json:"id"`
	ServiceKind Kind       `json:"service_type"`
	ServiceName string     `json:"service_name"`
	EventType   string     `json:"event_type"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"created_at"`
	Sent        bool       `json:"notification_sent"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
}

// OverallStatusSummary is the fleet-wide rollup.
type OverallStatusSummary struct {
	Status           Status  `json:"status"`
	Message          string  `json:"message"`
	TotalServices    int     `json:"total_services"`
	Operational      int     `json:"operational"`
	Degraded         int     `json:"degraded"`
	Down             int     `json:"down"`
	UptimePercentage float64 `json:"uptime_percentage"`
}

// HistoryPoint is one (day, target) bucket.
type HistoryPoint struct {
	Date            string  `json:"date"`
	Service         string  `json:"service_name"`
	Status          Status  `json:"status"`
	Uptime          float64 `json:"uptime"`
	AvgResponseTime int     `json:"avg_response_time"`
}

// DomainStatus is the dashboard row for a configured domain.
type DomainStatus struct {
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Status       Status     `json:"status"`
	ResponseTime *int       `json:"response_time"`
	StatusCode   int        `json:"status_code"`
	Error        string     `json:"error_message,omitempty"`
	LastChecked  *time.Time `json:"last_checked"`
	Uptime       float64    `json:"uptime"`
}

// ServerStatus is the dashboard row for a TCP server or game server.
type ServerStatus struct {
	Name          string     `json:"name"`
	Host          string     `json:"host"`
	Port          int        `json:"port"`
	Type          string     `json:"type"`
	Status        Status     `json:"status"`
	ResponseTime  *int       `json:"response_time"`
	Error         string     `json:"error_message,omitempty"`
	LastChecked   *time.Time `json:"last_checked"`
	Uptime        float64    `json:"uptime"`
	PlayersOnline *int       `json:"players_online,omitempty"`
	MaxPlayers    *int       `json:"max_players,omitempty"`
	Version       string     `json:"version,omitempty"`
}

// HypervisorStatus is the latest view of nodes and guests.
type HypervisorStatus struct {
	Enabled    bool         `json:"enabled"`
	Nodes      []NodeCheck  `json:"nodes"`
	VMs        []GuestCheck `json:"vms"`
	Containers []GuestCheck `json:"containers"`
}

// HistoryBucket is the raw per-day aggregate for one target.
type HistoryBucket struct {
	Date          string
	Target        string
	Total         int
	Operational   int
	Degraded      int
	Down          int
	AvgResponseMS *float64
}

// LogStats summarises the system_logs table.
type LogStats struct {
	TotalLogs  int `json:"total_logs"`
	ErrorCount int `json:"error_count"`
	WarnCount  int `json:"warn_count"`
	InfoCount  int `json:"info_count"`
	DebugCount int `json:"debug_count"`
}
