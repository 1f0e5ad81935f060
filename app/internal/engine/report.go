package engine

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"infrastatus/app/internal/models"
)

// CycleReport summarises one RunCycle call.
type CycleReport struct {
	ID            string                `json:"id"`
	Kind          string                `json:"kind"`
	StartedAt     time.Time             `json:"started_at"`
	FinishedAt    time.Time             `json:"finished_at"`
	Checked       int                   `json:"checked"`
	ByStatus      map[models.Status]int `json:"by_status"`
	Abandoned     int                   `json:"abandoned"`
	PersistErrors int                   `json:"persist_errors"`
	Alerts        int                   `json:"alerts"`
	Errors        []string              `json:"errors,omitempty"`
}

// Duration is the wall time of the cycle.
func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary renders the report as key=value pairs for logs.
func (r CycleReport) Summary() string {
	return fmt.Sprintf("id=%s checked=%d operational=%d degraded=%d down=%d abandoned=%d persist_errors=%d alerts=%d errors=%d took=%s",
		r.ID, r.Checked,
		r.ByStatus[models.StatusOperational], r.ByStatus[models.StatusDegraded], r.ByStatus[models.StatusDown],
		r.Abandoned, r.PersistErrors, r.Alerts, len(r.Errors), r.Duration().Round(time.Millisecond))
}

// cycle accumulates a report from concurrent workers.
type cycle struct {
	// slots bounds in-flight probes across every kind of the cycle.
	slots *semaphore.Weighted

	mu     sync.Mutex
	report CycleReport
}

func newCycle(id, kind string, workers int) *cycle {
	return &cycle{
		slots: semaphore.NewWeighted(int64(max(workers, 1))),
		report: CycleReport{
			ID:        id,
			Kind:      kind,
			StartedAt: time.Now().UTC(),
			ByStatus:  map[models.Status]int{},
		},
	}
}

func (c *cycle) checked(st models.Status) {
	c.mu.Lock()
	c.report.Checked++
	c.report.ByStatus[st]++
	c.mu.Unlock()
}

func (c *cycle) abandon() {
	c.mu.Lock()
	c.report.Abandoned++
	c.mu.Unlock()
}

func (c *cycle) persistFailed() {
	c.mu.Lock()
	c.report.PersistErrors++
	c.mu.Unlock()
}

func (c *cycle) alerted() {
	c.mu.Lock()
	c.report.Alerts++
	c.mu.Unlock()
}

func (c *cycle) fail(err error) {
	c.mu.Lock()
	c.report.Errors = append(c.report.Errors, err.Error())
	c.mu.Unlock()
}

func (c *cycle) finish() CycleReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.FinishedAt = time.Now().UTC()
	return c.report
}
