// Package stats derives dashboard rollups and history from stored check
// records. It never writes and never fails: store errors are logged and
// reported as missing data.
package stats

import (
	"context"
	"log"
	"time"

	"infrastatus/app/internal/cache"
	"infrastatus/app/internal/config"
	"infrastatus/app/internal/models"
	"infrastatus/app/internal/units"
)

// Read-side messages for targets without usable data.
const (
	MsgNoData  = "No data available"
	MsgDBError = "Database error"
)

const (
	uptimeWindow     = 7 * 24 * time.Hour
	hypervisorWindow = 10 * time.Minute
	loadTimeout      = 15 * time.Second
)

// Store is the read half of database.Store.
type Store interface {
	Latest(ctx context.Context, kind models.Kind, name string) (models.Record, error)
	LatestNodes(ctx context.Context, since time.Time) ([]models.NodeCheck, error)
	LatestGuests(ctx context.Context, kind models.Kind, since time.Time) ([]models.GuestCheck, error)
	UptimeFraction(ctx context.Context, kind models.Kind, name string, since time.Time) (float64, error)
	HistoryBuckets(ctx context.Context, kind models.Kind, since time.Time, maxRows int) ([]models.HistoryBucket, error)
}

// Service answers status queries for the configured fleet.
type Service struct {
	store   Store
	targets *config.Targets
	cache   *cache.Cache[any]
	now     func() time.Time
}

// NewService creates a read service. Results are cached for ttl; zero
// disables caching.
func NewService(store Store, targets *config.Targets, ttl time.Duration) *Service {
	return &Service{
		store:   store,
		targets: targets,
		cache:   cache.New[any](ttl),
		now:     time.Now,
	}
}

// Close stops the result cache.
func (s *Service) Close() {
	s.cache.Stop()
}

// Invalidate drops cached results, typically after a check cycle.
func (s *Service) Invalidate() {
	s.cache.Clear()
}

// cached loads key through the result cache. The load ignores the caller's
// cancellation so a dropped request never caches its error fallback.
func cached[T any](ctx context.Context, s *Service, key string, load func(context.Context) T) T {
	v := s.cache.GetOrLoad(key, func() any {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return load(lctx)
	})
	return v.(T)
}

// latest returns the newest record for a target, or a synthetic down record
// carrying the reason when there is none.
func (s *Service) latest(ctx context.Context, kind models.Kind, name string) (models.Record, string) {
	rec, err := s.store.Latest(ctx, kind, name)
	if err != nil {
		log.Printf("stats: latest %s %s: %v", kind, name, err)
		return nil, MsgDBError
	}
	if rec == nil {
		return nil, MsgNoData
	}
	return rec, ""
}

func (s *Service) uptime(ctx context.Context, kind models.Kind, name string) float64 {
	f, err := s.store.UptimeFraction(ctx, kind, name, s.now().Add(-uptimeWindow))
	if err != nil {
		log.Printf("stats: uptime %s %s: %v", kind, name, err)
		return 0
	}
	return units.Round(f*100, 2)
}

// OverallStatus tallies the latest status of every configured domain,
// server and game server plus hypervisor nodes seen in the last 10 minutes.
func (s *Service) OverallStatus(ctx context.Context) models.OverallStatusSummary {
	return cached(ctx, s, "overall", func(ctx context.Context) models.OverallStatusSummary {
		var statuses []models.Status
		status := func(kind models.Kind, name string) {
			rec, _ := s.latest(ctx, kind, name)
			if rec == nil {
				statuses = append(statuses, models.StatusDown)
				return
			}
			statuses = append(statuses, rec.Common().Status)
		}

		for _, d := range s.targets.Domains {
			status(models.KindDomain, d.Name)
		}
		for _, sv := range s.targets.Servers {
			status(models.KindServer, sv.Name)
		}
		for _, g := range s.targets.GameServers {
			status(models.KindGameServer, g.Name)
		}
		if s.targets.Hypervisor.Enabled {
			nodes, err := s.store.LatestNodes(ctx, s.now().Add(-hypervisorWindow))
			if err != nil {
				log.Printf("stats: latest nodes: %v", err)
			}
			for _, n := range nodes {
				statuses = append(statuses, n.Status)
			}
		}
		return ComputeOverall(statuses)
	})
}

// DomainStatuses returns one row per configured domain.
func (s *Service) DomainStatuses(ctx context.Context) []models.DomainStatus {
	return cached(ctx, s, "domains", func(ctx context.Context) []models.DomainStatus {
		out := make([]models.DomainStatus, 0, len(s.targets.Domains))
		for _, d := range s.targets.Domains {
			row := models.DomainStatus{Name: d.Name, URL: d.URL, Status: models.StatusDown}
			rec, reason := s.latest(ctx, models.KindDomain, d.Name)
			if dc, ok := rec.(models.DomainCheck); ok {
				row.Status = dc.Status
				row.ResponseTime = dc.ResponseMS
				row.StatusCode = dc.StatusCode
				row.Error = dc.Error
				row.LastChecked = &dc.CheckedAt
				row.Uptime = s.uptime(ctx, models.KindDomain, d.Name)
			} else {
				row.Error = reason
			}
			out = append(out, row)
		}
		return out
	})
}

// ServerStatuses returns TCP servers followed by game servers.
func (s *Service) ServerStatuses(ctx context.Context) []models.ServerStatus {
	return cached(ctx, s, "servers", func(ctx context.Context) []models.ServerStatus {
		out := make([]models.ServerStatus, 0, len(s.targets.Servers)+len(s.targets.GameServers))
		for _, sv := range s.targets.Servers {
			row := models.ServerStatus{Name: sv.Name, Host: sv.Host, Port: sv.Port, Type: sv.Type, Status: models.StatusDown}
			rec, reason := s.latest(ctx, models.KindServer, sv.Name)
			if sc, ok := rec.(models.ServerCheck); ok {
				row.Status = sc.Status
				row.ResponseTime = sc.ResponseMS
				row.Error = sc.Error
				row.LastChecked = &sc.CheckedAt
				row.Uptime = s.uptime(ctx, models.KindServer, sv.Name)
			} else {
				row.Error = reason
			}
			out = append(out, row)
		}
		for _, g := range s.targets.GameServers {
			row := models.ServerStatus{Name: g.Name, Host: g.Host, Port: g.Port, Type: models.ServerTypeGameServer, Status: models.StatusDown}
			rec, reason := s.latest(ctx, models.KindGameServer, g.Name)
			if gc, ok := rec.(models.GameServerCheck); ok {
				row.Status = gc.Status
				row.ResponseTime = gc.ResponseMS
				row.Error = gc.Error
				row.LastChecked = &gc.CheckedAt
				row.Uptime = s.uptime(ctx, models.KindGameServer, g.Name)
				row.PlayersOnline = &gc.PlayersOnline
				row.MaxPlayers = &gc.MaxPlayers
				row.Version = gc.Version
			} else {
				row.Error = reason
			}
			out = append(out, row)
		}
		return out
	})
}

// HypervisorStatus returns nodes and guests seen in the last 10 minutes.
func (s *Service) HypervisorStatus(ctx context.Context) models.HypervisorStatus {
	if !s.targets.Hypervisor.Enabled {
		return models.HypervisorStatus{Nodes: []models.NodeCheck{}, VMs: []models.GuestCheck{}, Containers: []models.GuestCheck{}}
	}
	return cached(ctx, s, "hypervisor", func(ctx context.Context) models.HypervisorStatus {
		since := s.now().Add(-hypervisorWindow)
		hs := models.HypervisorStatus{Enabled: true}
		var err error
		if hs.Nodes, err = s.store.LatestNodes(ctx, since); err != nil {
			log.Printf("stats: latest nodes: %v", err)
		}
		if hs.VMs, err = s.store.LatestGuests(ctx, models.KindVM, since); err != nil {
			log.Printf("stats: latest vms: %v", err)
		}
		if hs.Containers, err = s.store.LatestGuests(ctx, models.KindContainer, since); err != nil {
			log.Printf("stats: latest containers: %v", err)
		}
		if hs.Nodes == nil {
			hs.Nodes = []models.NodeCheck{}
		}
		for i := range hs.Nodes {
			hs.Nodes[i].UptimeText = units.FormatUptime(hs.Nodes[i].UptimeSeconds)
		}
		if hs.VMs == nil {
			hs.VMs = []models.GuestCheck{}
		}
		if hs.Containers == nil {
			hs.Containers = []models.GuestCheck{}
		}
		return hs
	})
}
