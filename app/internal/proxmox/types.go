package proxmox

// Raw API payloads. Numeric fields are left as any because the API mixes
// numbers and numeric strings between versions.

type envelope[T any] struct {
	Data T `json:"data"`
}

type ticketData struct {
	Ticket    string `json:"ticket"`
	CSRFToken string `json:"CSRFPreventionToken"`
	Username  string `json:"username"`
}

type nodeEntry struct {
	Node   string `json:"node"`
	Status string `json:"status"`
}

type usagePair struct {
	Used  any `json:"used"`
	Total any `json:"total"`
}

type nodeStatusData struct {
	CPU     any       `json:"cpu"`
	Memory  usagePair `json:"memory"`
	RootFS  usagePair `json:"rootfs"`
	Uptime  any       `json:"uptime"`
	LoadAvg []any     `json:"loadavg"`
}

type guestEntry struct {
	VMID   any    `json:"vmid"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type guestStatusData struct {
	Status    string `json:"status"`
	QMPStatus string `json:"qmpstatus"`
	Name      string `json:"name"`
	CPU       any    `json:"cpu"`
	Mem       any    `json:"mem"`
	MaxMem    any    `json:"maxmem"`
}

// Node is one cluster member as listed by /nodes.
type Node struct {
	Name   string
	Status string
}

// NodeMetrics are the derived node percentages, rounded to 2 decimals.
type NodeMetrics struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
	UptimeSeconds int64
	LoadAverage   []float64
}

// Guest is a VM or container as listed under a node.
type Guest struct {
	VMID   int
	Name   string
	Status string
}

// GuestState is the current runtime state of one guest.
type GuestState struct {
	Status        string
	CPUPercent    float64
	MemoryPercent float64
}
