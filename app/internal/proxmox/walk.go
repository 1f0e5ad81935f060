package proxmox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"infrastatus/app/internal/checker"
	"infrastatus/app/internal/models"
)

// Guest types as they appear in API paths.
const (
	GuestQEMU = "qemu"
	GuestLXC  = "lxc"
)

// WalkReport summarises one traversal.
type WalkReport struct {
	Nodes  int
	Guests int
	Errors []error
}

// Gate bounds how many nodes are walked at once. *semaphore.Weighted
// satisfies it, which lets a caller share one limit with other work.
type Gate interface {
	Acquire(ctx context.Context, n int64) error
	Release(n int64)
}

// Walk enumerates the cluster and emits one record per node, VM and
// container as soon as each is complete. Each node holds one slot of gate
// while it is walked; emit must be safe for concurrent use. Nodes not yet
// started when ctx is done are skipped.
//
// Failing to list nodes is the only fatal error. A node whose status call
// fails is emitted as down, a failed guest listing is reported in
// WalkReport.Errors, and a failed guest status is emitted as down with
// lifecycle "unknown".
func (c *Client) Walk(ctx context.Context, limits models.NodeLimits, gate Gate, emit func(models.Record)) (WalkReport, error) {
	nodes, err := c.Nodes(ctx)
	if err != nil {
		return WalkReport{}, fmt.Errorf("list nodes: %w", err)
	}

	var (
		mu     sync.Mutex
		report WalkReport
	)
	addErr := func(err error) {
		mu.Lock()
		report.Errors = append(report.Errors, err)
		mu.Unlock()
	}
	count := func(nodes, guests int) {
		mu.Lock()
		report.Nodes += nodes
		report.Guests += guests
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range nodes {
		if err := gate.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer gate.Release(1)
			emit(c.checkNode(gctx, n.Name, limits))
			count(1, 0)
			for _, gt := range []string{GuestQEMU, GuestLXC} {
				guests, err := c.Guests(gctx, n.Name, gt)
				if err != nil {
					addErr(&SubresourceError{Node: n.Name, Resource: gt, Err: err})
					continue
				}
				for _, guest := range guests {
					emit(c.checkGuest(gctx, n.Name, gt, guest))
					count(0, 1)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return report, nil
}

func (c *Client) checkNode(ctx context.Context, name string, limits models.NodeLimits) models.NodeCheck {
	rec := models.NodeCheck{CheckRecord: models.CheckRecord{Kind: models.KindNode, Target: name}}

	t0 := time.Now()
	m, err := c.NodeStatus(ctx, name)
	ms := int(time.Since(t0).Milliseconds())
	rec.CheckedAt = time.Now().UTC()
	if err != nil {
		rec.Status = models.StatusDown
		rec.Error = err.Error()
		return rec
	}

	rec.ResponseMS = &ms
	rec.CPUPercent = m.CPUPercent
	rec.MemoryPercent = m.MemoryPercent
	rec.DiskPercent = m.DiskPercent
	rec.UptimeSeconds = m.UptimeSeconds
	rec.LoadAverage = m.LoadAverage
	rec.Status = checker.ClassifyNode(m.CPUPercent, m.MemoryPercent, m.DiskPercent, limits)
	return rec
}

func (c *Client) checkGuest(ctx context.Context, node, guestType string, guest Guest) models.GuestCheck {
	kind, prefix := models.KindVM, "VM"
	if guestType == GuestLXC {
		kind, prefix = models.KindContainer, "CT"
	}
	name := guest.Name
	if name == "" {
		name = fmt.Sprintf("%s-%d", prefix, guest.VMID)
	}
	rec := models.GuestCheck{
		CheckRecord: models.CheckRecord{Kind: kind, Target: name},
		Node:        node,
		VMID:        guest.VMID,
	}

	t0 := time.Now()
	st, err := c.GuestStatus(ctx, node, guestType, guest.VMID)
	ms := int(time.Since(t0).Milliseconds())
	rec.CheckedAt = time.Now().UTC()
	if err != nil {
		rec.Status = models.StatusDown
		rec.LifecycleStatus = "unknown"
		rec.Error = err.Error()
		return rec
	}

	rec.ResponseMS = &ms
	rec.LifecycleStatus = st.Status
	rec.CPUPercent = st.CPUPercent
	rec.MemoryPercent = st.MemoryPercent
	rec.Status = checker.ClassifyGuest(st.Status)
	return rec
}
