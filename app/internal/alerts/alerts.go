// Package alerts decides when an alert event should fire. Delivery is left
// to an external notifier that acknowledges events through the store.
package alerts

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"infrastatus/app/internal/models"
)

// DefaultWindow is the suppression window for identical events.
const DefaultWindow = time.Hour

// Store is the alert half of database.Store.
type Store interface {
	CountAlertsSince(ctx context.Context, kind models.Kind, name, message string, since time.Time) (int, error)
	InsertAlert(ctx context.Context, ev *models.AlertEvent) error
}

// Breach is a candidate alert event.
type Breach struct {
	Kind      models.Kind
	Name      string
	EventType string
	Message   string
}

// Deduplicator suppresses events whose (kind, name, message) key already
// fired within the window.
type Deduplicator struct {
	store  Store
	window time.Duration
	now    func() time.Time
	mu     sync.Mutex
}

// NewDeduplicator creates a deduplicator. A non-positive window uses
// DefaultWindow.
func NewDeduplicator(store Store, window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Deduplicator{store: store, window: window, now: time.Now}
}

// Raise records the breach as a new unsent event unless an identical one
// exists inside the window. It reports whether an event was created.
func (d *Deduplicator) Raise(ctx context.Context, b Breach) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now().UTC()
	n, err := d.store.CountAlertsSince(ctx, b.Kind, b.Name, b.Message, now.Add(-d.window))
	if err != nil {
		return false, fmt.Errorf("dedup %s %s: %w", b.Kind, b.Name, err)
	}
	if n > 0 {
		return false, nil
	}

	ev := &models.AlertEvent{
		ServiceKind: b.Kind,
		ServiceName: b.Name,
		EventType:   b.EventType,
		Message:     b.Message,
		CreatedAt:   now,
	}
	if err := d.store.InsertAlert(ctx, ev); err != nil {
		return false, fmt.Errorf("raise %s %s: %w", b.Kind, b.Name, err)
	}
	return true, nil
}

// EvaluateNode returns a breach per metric above its critical limit and,
// when includeWarnings is set, per metric above its warning limit only.
func EvaluateNode(n models.NodeCheck, th models.Thresholds, includeWarnings bool) []Breach {
	metrics := []struct {
		label             string
		value             float64
		warning, critical float64
	}{
		{"CPU", n.CPUPercent, th.CPUWarning, th.CPUCritical},
		{"Memory", n.MemoryPercent, th.MemoryWarning, th.MemoryCritical},
		{"Disk", n.DiskPercent, th.DiskWarning, th.DiskCritical},
	}

	var out []Breach
	for _, m := range metrics {
		v := strconv.FormatFloat(m.value, 'f', -1, 64)
		switch {
		case m.value > m.critical:
			out = append(out, Breach{
				Kind:      models.KindNode,
				Name:      n.Target,
				EventType: models.EventDown,
				Message:   fmt.Sprintf("%s usage critical: %s%%", m.label, v),
			})
		case includeWarnings && m.value > m.warning:
			out = append(out, Breach{
				Kind:      models.KindNode,
				Name:      n.Target,
				EventType: models.EventDegraded,
				Message:   fmt.Sprintf("%s usage high: %s%%", m.label, v),
			})
		}
	}
	return out
}

// TransitionBreach returns the event for a status change. ok is false when
// the status did not change.
func TransitionBreach(kind models.Kind, name string, from, to models.Status) (b Breach, ok bool) {
	if from == to {
		return Breach{}, false
	}
	event := models.EventDown
	switch to {
	case models.StatusOperational:
		event = models.EventUp
	case models.StatusDegraded:
		event = models.EventDegraded
	}
	return Breach{
		Kind:      kind,
		Name:      name,
		EventType: event,
		Message:   fmt.Sprintf("%s changed from %s to %s", name, from, to),
	}, true
}
