package models

import "time"

// Status is the health classification of a single check or rollup.
type Status string

const (
	StatusOperational Status = "operational"
	StatusDegraded    Status = "degraded"
	StatusDown        Status = "down"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOperational, StatusDegraded, StatusDown:
		return true
	}
	return false
}

// Kind identifies what sort of target a record describes.
type Kind string

const (
	KindDomain     Kind = "domain"
	KindServer     Kind = "server"
	KindGameServer Kind = "gameserver"
	KindNode       Kind = "proxmox_node"
	KindVM         Kind = "proxmox_vm"
	KindContainer  Kind = "proxmox_container"
)

// Kinds lists every record kind in storage order.
var Kinds = []Kind{KindDomain, KindServer, KindGameServer, KindNode, KindVM, KindContainer}

// Server types
const (
	ServerTypeExternal   = "external"
	ServerTypeSystem     = "system"
	ServerTypeGameServer = "gameserver"
)

// Domain is an HTTP(S) endpoint probed with a single GET.
type Domain struct {
	Name           string `yaml:"name" json:"name"`
	URL            string `yaml:"url" json:"url"`
	ExpectedCode   int    `yaml:"expected_status" json:"expected_status"`
	TimeoutSeconds int    `yaml:"timeout" json:"timeout"`
	VerifyTLS      *bool  `yaml:"verify_ssl" json:"verify_ssl,omitempty"`
}

// Timeout returns the probe timeout, defaulting to 10s.
func (d Domain) Timeout() time.Duration {
	if d.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// Expected returns the expected status code, defaulting to 200.
func (d Domain) Expected() int {
	if d.ExpectedCode == 0 {
		return 200
	}
	return d.ExpectedCode
}

// ShouldVerifyTLS defaults to true when unset.
func (d Domain) ShouldVerifyTLS() bool {
	return d.VerifyTLS == nil || *d.VerifyTLS
}

// Server is a host:port checked for TCP reachability.
type Server struct {
	Name           string `yaml:"name" json:"name"`
	Host           string `yaml:"host" json:"host"`
	Port           int    `yaml:"port" json:"port"`
	Type           string `yaml:"type" json:"type"`
	TimeoutSeconds int    `yaml:"timeout" json:"timeout"`
}

// Timeout returns the connect timeout, defaulting to 10s.
func (s Server) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// GameServer is probed with the legacy server-list ping.
type GameServer struct {
	Name           string `yaml:"name" json:"name"`
	Host           string `yaml:"host" json:"host"`
	Port           int    `yaml:"port" json:"port"`
	TimeoutSeconds int    `yaml:"timeout" json:"timeout"`
}

// Timeout returns the ping timeout, defaulting to 5s.
func (g GameServer) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// HypervisorConfig describes the Proxmox VE management API to walk.
type HypervisorConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	Host           string `yaml:"host" json:"host"`
	Port           int    `yaml:"port" json:"port"`
	Username       string `yaml:"username" json:"username"`
	Password       string `yaml:"password" json:"-"`
	Realm          string `yaml:"realm" json:"realm"`
	VerifyTLS      bool   `yaml:"verify_ssl" json:"verify_ssl"`
	TimeoutSeconds int    `yaml:"timeout" json:"timeout"`
}

// Timeout returns the per-request timeout, defaulting to 30s.
func (h HypervisorConfig) Timeout() time.Duration {
	if h.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// Thresholds are the per-metric alert limits in percent.
type Thresholds struct {
	CPUWarning     float64 `yaml:"cpu_warning" json:"cpu_warning"`
	CPUCritical    float64 `yaml:"cpu_critical" json:"cpu_critical"`
	MemoryWarning  float64 `yaml:"memory_warning" json:"memory_warning"`
	MemoryCritical float64 `yaml:"memory_critical" json:"memory_critical"`
	DiskWarning    float64 `yaml:"disk_warning" json:"disk_warning"`
	DiskCritical   float64 `yaml:"disk_critical" json:"disk_critical"`
}

// DefaultThresholds returns CPU 80/95, memory 85/95, disk 85/95.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUWarning:     80,
		CPUCritical:    95,
		MemoryWarning:  85,
		MemoryCritical: 95,
		DiskWarning:    85,
		DiskCritical:   95,
	}
}

// NodeLimits are the shared limits used to classify a hypervisor node.
type NodeLimits struct {
	Warning  float64 `yaml:"warning" json:"warning"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// DefaultNodeLimits returns 85/95.
func DefaultNodeLimits() NodeLimits {
	return NodeLimits{Warning: 85, Critical: 95}
}

// LogEntry represents a single log entry in system_logs
type LogEntry struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Service   string `json:"service"`
	Message   string `json:"message"`
	Details   string `json:"details"`
}

// TableStat is the row count of one history table.
type TableStat struct {
	Table       string `json:"table"`
	TotalRows   int64  `json:"total_records"`
	Last24Hours int64  `json:"recent_records"`
}
