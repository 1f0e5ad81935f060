// Package engine runs check cycles: it probes every configured target,
// persists each record and turns status changes and node threshold breaches
// into alert events.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"infrastatus/app/internal/alerts"
	"infrastatus/app/internal/config"
	"infrastatus/app/internal/database"
	"infrastatus/app/internal/models"
	"infrastatus/app/internal/proxmox"
	"infrastatus/app/internal/units"
)

// Cycle kinds accepted by RunCycle.
const (
	CycleDomains     = "domains"
	CycleServers     = "servers"
	CycleGameServers = "gameservers"
	CycleProxmox     = "proxmox"
	CycleAll         = "all"
)

// cycleOrder is the order kinds run in an "all" cycle.
var cycleOrder = []string{CycleDomains, CycleServers, CycleGameServers, CycleProxmox}

// ErrUnknownCycle is returned for a kind RunCycle does not know.
var ErrUnknownCycle = errors.New("unknown cycle kind")

// ValidCycle reports whether kind can be passed to RunCycle.
func ValidCycle(kind string) bool {
	switch kind {
	case CycleDomains, CycleServers, CycleGameServers, CycleProxmox, CycleAll:
		return true
	}
	return false
}

// Store is what the engine needs from database.Store.
type Store interface {
	alerts.Store
	Append(ctx context.Context, rec models.Record) error
	Latest(ctx context.Context, kind models.Kind, name string) (models.Record, error)
	PurgeOlderThan(ctx context.Context, days int) (database.PurgeReport, error)
	PruneLogs(keepCount int) error
	InsertLog(level, category, service, message, details string) error
	Ping(ctx context.Context) error
}

// Hypervisor is a connected management API session.
type Hypervisor interface {
	Nodes(ctx context.Context) ([]proxmox.Node, error)
	Walk(ctx context.Context, limits models.NodeLimits, gate proxmox.Gate, emit func(models.Record)) (proxmox.WalkReport, error)
}

// Connector opens a new hypervisor session.
type Connector func(ctx context.Context, cfg models.HypervisorConfig) (Hypervisor, error)

func connectProxmox(ctx context.Context, cfg models.HypervisorConfig) (Hypervisor, error) {
	c, err := proxmox.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithConnector replaces the hypervisor connector.
func WithConnector(c Connector) Option {
	return func(e *Engine) { e.connect = c }
}

// WithCycleHook registers a function called after every cycle.
func WithCycleHook(fn func(CycleReport)) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, fn) }
}

// Engine runs one cycle at a time.
type Engine struct {
	cfg     *config.Config
	store   Store
	dedup   *alerts.Deduplicator
	connect Connector
	hooks   []func(CycleReport)

	mu sync.Mutex
}

// New creates an engine over the given configuration and store.
func New(cfg *config.Config, store Store, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		store:   store,
		dedup:   alerts.NewDeduplicator(store, cfg.AlertWindow),
		connect: connectProxmox,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) workers() int {
	if e.cfg.Sequential || e.cfg.Workers < 1 {
		return 1
	}
	return e.cfg.Workers
}

// logEvent writes to the process log and the system_logs table.
func (e *Engine) logEvent(level, category, service, message, details string) {
	if details != "" {
		log.Printf("[%s] %s: %s (%s)", category, service, message, details)
	} else {
		log.Printf("[%s] %s: %s", category, service, message)
	}
	if err := e.store.InsertLog(level, category, service, message, details); err != nil {
		log.Printf("failed to write system log: %v", err)
	}
}

// RunCycle checks every target of kind ("all" for every kind). Completed
// records are kept when the cycle deadline passes; probes still in flight
// are counted as abandoned. The returned error joins cycle-level failures
// such as hypervisor authentication.
func (e *Engine) RunCycle(ctx context.Context, kind string) (CycleReport, error) {
	if !ValidCycle(kind) {
		return CycleReport{}, fmt.Errorf("%w: %q", ErrUnknownCycle, kind)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c := newCycle(uuid.NewString(), kind, e.workers())
	if e.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CycleTimeout)
		defer cancel()
	}

	log.Printf("cycle %s: starting %s", c.report.ID, kind)

	kinds := []string{kind}
	if kind == CycleAll {
		kinds = cycleOrder
	}

	var errs []error
	if e.cfg.Sequential || len(kinds) == 1 {
		for _, k := range kinds {
			if err := e.runKind(ctx, c, k); err != nil {
				errs = append(errs, err)
			}
		}
	} else {
		var (
			wg    sync.WaitGroup
			errMu sync.Mutex
		)
		for _, k := range kinds {
			wg.Go(func() {
				if err := e.runKind(ctx, c, k); err != nil {
					errMu.Lock()
					errs = append(errs, err)
					errMu.Unlock()
				}
			})
		}
		wg.Wait()
	}

	if ctx.Err() != nil {
		c.fail(fmt.Errorf("cycle deadline: %w", ctx.Err()))
	}
	report := c.finish()

	level := database.LogLevelInfo
	if len(errs) > 0 || report.PersistErrors > 0 || report.Abandoned > 0 {
		level = database.LogLevelWarn
	}
	e.logEvent(level, database.LogCategorySchedule, kind, "Check cycle finished", report.Summary())

	for _, hook := range e.hooks {
		hook(report)
	}
	return report, errors.Join(errs...)
}

func (e *Engine) runKind(ctx context.Context, c *cycle, kind string) error {
	t := e.cfg.Targets
	switch kind {
	case CycleDomains:
		runPool(ctx, c.slots, t.Domains, func(d models.Domain) {
			rec, _ := checkDomain(ctx, d)
			e.record(ctx, c, rec)
		})
	case CycleServers:
		runPool(ctx, c.slots, t.Servers, func(s models.Server) {
			rec, _ := checkServer(ctx, s)
			e.record(ctx, c, rec)
		})
	case CycleGameServers:
		runPool(ctx, c.slots, t.GameServers, func(g models.GameServer) {
			rec, _ := checkGameServer(ctx, g)
			e.record(ctx, c, rec)
		})
	case CycleProxmox:
		return e.runHypervisor(ctx, c)
	}
	return nil
}

func (e *Engine) runHypervisor(ctx context.Context, c *cycle) error {
	hc := e.cfg.Targets.Hypervisor
	if !hc.Enabled {
		return nil
	}

	client, err := e.connect(ctx, hc)
	if err != nil {
		c.fail(err)
		e.logEvent(database.LogLevelError, database.LogCategoryProxmox, hc.Host, "Hypervisor connection failed", err.Error())
		return err
	}

	walk, err := client.Walk(ctx, e.cfg.Targets.NodeLimits, c.slots, func(rec models.Record) {
		e.record(ctx, c, rec)
	})
	if err != nil {
		c.fail(err)
		e.logEvent(database.LogLevelError, database.LogCategoryProxmox, hc.Host, "Hypervisor walk failed", err.Error())
		return err
	}
	for _, werr := range walk.Errors {
		c.fail(werr)
		e.logEvent(database.LogLevelWarn, database.LogCategoryProxmox, hc.Host, "Hypervisor sub-resource failed", werr.Error())
	}
	log.Printf("cycle %s: hypervisor walked %d nodes, %d guests", c.report.ID, walk.Nodes, walk.Guests)
	return nil
}

// record persists one completed probe and raises its alerts. Results that
// arrive after the cycle deadline are dropped.
func (e *Engine) record(ctx context.Context, c *cycle, rec models.Record) {
	if ctx.Err() != nil {
		c.abandon()
		return
	}
	common := rec.Common()

	var prev models.Record
	if e.cfg.AlertOnTransitions && tracksTransitions(common.Kind) {
		var err error
		if prev, err = e.store.Latest(ctx, common.Kind, common.Target); err != nil {
			log.Printf("cycle %s: previous %s %s: %v", c.report.ID, common.Kind, common.Target, err)
		}
	}

	if err := e.store.Append(ctx, rec); err != nil {
		c.persistFailed()
		e.logEvent(database.LogLevelError, database.LogCategoryPersistence, common.Target, "Failed to store check result", err.Error())
	}
	c.checked(common.Status)

	if common.Status != models.StatusOperational && common.Error != "" {
		e.logEvent(database.LogLevelWarn, database.LogCategoryCheck, common.Target,
			fmt.Sprintf("%s check %s", common.Kind, common.Status), common.Error)
	}

	var breaches []alerts.Breach
	if prev != nil {
		if b, ok := alerts.TransitionBreach(common.Kind, common.Target, prev.Common().Status, common.Status); ok {
			breaches = append(breaches, b)
		}
	}
	if n, ok := rec.(models.NodeCheck); ok && n.Error == "" {
		breaches = append(breaches, alerts.EvaluateNode(n, e.cfg.Targets.Thresholds, e.cfg.AlertOnWarning)...)
	}
	for _, b := range breaches {
		created, err := e.dedup.Raise(ctx, b)
		if err != nil {
			e.logEvent(database.LogLevelError, database.LogCategoryAlert, b.Name, "Failed to raise alert", err.Error())
			continue
		}
		if created {
			c.alerted()
			e.logEvent(database.LogLevelInfo, database.LogCategoryAlert, b.Name, b.Message, b.EventType)
		}
	}
}

// tracksTransitions excludes guests, whose names are not unique.
func tracksTransitions(kind models.Kind) bool {
	return kind != models.KindVM && kind != models.KindContainer
}

// Cleanup purges records past retention and trims the system log.
func (e *Engine) Cleanup(ctx context.Context) (database.PurgeReport, error) {
	report, err := e.store.PurgeOlderThan(ctx, e.cfg.RetentionDays)
	if err != nil {
		e.logEvent(database.LogLevelError, database.LogCategorySystem, "cleanup", "Retention purge failed", err.Error())
		return report, err
	}
	if err := e.store.PruneLogs(e.cfg.LogKeep); err != nil {
		e.logEvent(database.LogLevelWarn, database.LogCategorySystem, "cleanup", "Log prune failed", err.Error())
	}
	e.logEvent(database.LogLevelInfo, database.LogCategorySystem, "cleanup",
		fmt.Sprintf("Removed %s records older than %d days", units.FormatCount(report.Total()), e.cfg.RetentionDays), "")
	return report, nil
}

// ConnectionResult is the outcome of one self-test.
type ConnectionResult struct {
	Name   string        `json:"name"`
	OK     bool          `json:"ok"`
	Detail string        `json:"detail"`
	Took   time.Duration `json:"took_ns"`
}

// TestConnections pings the database and, when enabled, authenticates
// against the hypervisor and lists its nodes.
func (e *Engine) TestConnections(ctx context.Context) []ConnectionResult {
	var out []ConnectionResult

	t0 := time.Now()
	res := ConnectionResult{Name: "database", OK: true, Detail: "reachable"}
	if err := e.store.Ping(ctx); err != nil {
		res.OK, res.Detail = false, err.Error()
	}
	res.Took = time.Since(t0)
	out = append(out, res)

	hc := e.cfg.Targets.Hypervisor
	if !hc.Enabled {
		return out
	}
	t0 = time.Now()
	res = ConnectionResult{Name: "proxmox", OK: true}
	client, err := e.connect(ctx, hc)
	if err == nil {
		var nodes []proxmox.Node
		nodes, err = client.Nodes(ctx)
		res.Detail = fmt.Sprintf("%d nodes", len(nodes))
	}
	if err != nil {
		res.OK, res.Detail = false, err.Error()
	}
	res.Took = time.Since(t0)
	return append(out, res)
}
