package stats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"infrastatus/app/internal/models"
	"infrastatus/app/internal/units"
)

// History services
const (
	HistoryDomains = "domains"
	HistoryServers = "servers"
	HistoryProxmox = "proxmox"
)

const (
	minHistoryDays = 1
	maxHistoryDays = 28
	// maxHistoryRows caps buckets read per underlying kind.
	maxHistoryRows = 28
	gameSuffix     = " (game)"
)

// ErrUnknownService is returned for a history service other than domains,
// servers or proxmox.
var ErrUnknownService = errors.New("unknown history service")

// ClampDays limits a history window to 1..28 days.
func ClampDays(days int) int {
	return min(max(days, minHistoryDays), maxHistoryDays)
}

// ServiceHistory returns per-day buckets for a service, newest day first.
func (s *Service) ServiceHistory(ctx context.Context, service string, days int) ([]models.HistoryPoint, error) {
	var kinds []models.Kind
	switch service {
	case HistoryDomains:
		kinds = []models.Kind{models.KindDomain}
	case HistoryServers:
		kinds = []models.Kind{models.KindServer, models.KindGameServer}
	case HistoryProxmox:
		kinds = []models.Kind{models.KindNode}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, service)
	}
	days = ClampDays(days)

	key := fmt.Sprintf("history:%s:%d", service, days)
	return cached(ctx, s, key, func(ctx context.Context) []models.HistoryPoint {
		since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
		points := []models.HistoryPoint{}
		for _, kind := range kinds {
			buckets, err := s.store.HistoryBuckets(ctx, kind, since, maxHistoryRows)
			if err != nil {
				log.Printf("stats: history %s: %v", kind, err)
				continue
			}
			for _, b := range buckets {
				p := BucketPoint(b)
				if kind == models.KindGameServer {
					p.Service += gameSuffix
				}
				points = append(points, p)
			}
		}
		sort.SliceStable(points, func(i, j int) bool { return points[i].Date > points[j].Date })
		return points
	}), nil
}

// BucketPoint converts a raw day bucket. A fully operational day is
// operational; otherwise the worst status seen wins, degraded by default.
func BucketPoint(b models.HistoryBucket) models.HistoryPoint {
	p := models.HistoryPoint{
		Date:    b.Date,
		Service: b.Target,
		Uptime:  units.Percent(float64(b.Operational), float64(b.Total), 1),
	}
	switch {
	case b.Total > 0 && b.Operational == b.Total:
		p.Status = models.StatusOperational
	case b.Down > 0:
		p.Status = models.StatusDown
	default:
		p.Status = models.StatusDegraded
	}
	if b.AvgResponseMS != nil {
		p.AvgResponseTime = int(math.Round(*b.AvgResponseMS))
	}
	return p
}
