package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"infrastatus/app/internal/config"
	"infrastatus/app/internal/database"
	"infrastatus/app/internal/models"
)

func initTestDB(t *testing.T) *database.Store {
	t.Helper()
	s, err := database.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestService(t *testing.T, store Store, targets *config.Targets) *Service {
	t.Helper()
	svc := NewService(store, targets, 0)
	t.Cleanup(svc.Close)
	return svc
}

func intp(n int) *int { return &n }

func appendDomain(t *testing.T, s *database.Store, name string, st models.Status, at time.Time) {
	t.Helper()
	err := s.Append(context.Background(), models.DomainCheck{
		CheckRecord: models.CheckRecord{Kind: models.KindDomain, Target: name, Status: st, ResponseMS: intp(100), CheckedAt: at},
		URL:         "https://" + name,
		StatusCode:  200,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

// failingStore returns an error from every read.
type failingStore struct{}

var errBoom = errors.New("boom")

func (failingStore) Latest(context.Context, models.Kind, string) (models.Record, error) {
	return nil, errBoom
}
func (failingStore) LatestNodes(context.Context, time.Time) ([]models.NodeCheck, error) {
	return nil, errBoom
}
func (failingStore) LatestGuests(context.Context, models.Kind, time.Time) ([]models.GuestCheck, error) {
	return nil, errBoom
}
func (failingStore) UptimeFraction(context.Context, models.Kind, string, time.Time) (float64, error) {
	return 0, errBoom
}
func (failingStore) HistoryBuckets(context.Context, models.Kind, time.Time, int) ([]models.HistoryBucket, error) {
	return nil, errBoom
}

// --------------- ComputeOverall ---------------

func statuses(op, deg, down int) []models.Status {
	var out []models.Status
	for range op {
		out = append(out, models.StatusOperational)
	}
	for range deg {
		out = append(out, models.StatusDegraded)
	}
	for range down {
		out = append(out, models.StatusDown)
	}
	return out
}

func TestComputeOverall(t *testing.T) {
	tests := []struct {
		name    string
		in      []models.Status
		status  models.Status
		message string
		uptime  float64
	}{
		{"empty", nil, models.StatusDown, MsgNoServices, 0},
		{"all up", statuses(5, 0, 0), models.StatusOperational, MsgAllOK, 100},
		{"degraded only", statuses(4, 1, 0), models.StatusDegraded, MsgDegradation, 80},
		{"one of ten down", statuses(9, 0, 1), models.StatusDegraded, MsgSomeDown, 90},
		{"exactly twenty percent", statuses(4, 0, 1), models.StatusDegraded, MsgSomeDown, 80},
		{"one of three down", statuses(2, 0, 1), models.StatusDown, MsgMajorOutages, 66.7},
		{"all down", statuses(0, 0, 3), models.StatusDown, MsgMajorOutages, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeOverall(tc.in)
			if got.Status != tc.status || got.Message != tc.message {
				t.Errorf("got %s %q, want %s %q", got.Status, got.Message, tc.status, tc.message)
			}
			if got.UptimePercentage != tc.uptime {
				t.Errorf("uptime = %v, want %v", got.UptimePercentage, tc.uptime)
			}
			if got.TotalServices != len(tc.in) {
				t.Errorf("total = %d, want %d", got.TotalServices, len(tc.in))
			}
		})
	}
}

// --------------- OverallStatus ---------------

func TestOverallStatus_MissingRecordCountsDown(t *testing.T) {
	store := initTestDB(t)
	appendDomain(t, store, "a", models.StatusOperational, time.Now())

	targets := &config.Targets{Domains: []models.Domain{{Name: "a"}, {Name: "b"}}}
	sum := newTestService(t, store, targets).OverallStatus(context.Background())

	if sum.TotalServices != 2 || sum.Operational != 1 || sum.Down != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if sum.Status != models.StatusDown {
		t.Errorf("expected down (50%% down), got %s", sum.Status)
	}
}

func TestOverallStatus_NodesWithinWindowOnly(t *testing.T) {
	store := initTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	store.Append(ctx, models.NodeCheck{CheckRecord: models.CheckRecord{Kind: models.KindNode, Target: "pve1", Status: models.StatusOperational, CheckedAt: now.Add(-time.Minute)}})
	store.Append(ctx, models.NodeCheck{CheckRecord: models.CheckRecord{Kind: models.KindNode, Target: "pve2", Status: models.StatusDown, CheckedAt: now.Add(-time.Hour)}})
	store.Append(ctx, models.GuestCheck{
		CheckRecord: models.CheckRecord{Kind: models.KindVM, Target: "vm", Status: models.StatusDown, CheckedAt: now},
		Node:        "pve1", VMID: 100, LifecycleStatus: "stopped",
	})

	targets := &config.Targets{Hypervisor: models.HypervisorConfig{Enabled: true}}
	sum := newTestService(t, store, targets).OverallStatus(ctx)

	if sum.TotalServices != 1 || sum.Status != models.StatusOperational {
		t.Errorf("expected only the fresh node counted, got %+v", sum)
	}
}

func TestOverallStatus_NoTargets(t *testing.T) {
	store := initTestDB(t)
	sum := newTestService(t, store, &config.Targets{}).OverallStatus(context.Background())
	if sum.Status != models.StatusDown || sum.Message != MsgNoServices {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestOverallStatus_StoreErrorNeverFails(t *testing.T) {
	targets := &config.Targets{
		Domains:    []models.Domain{{Name: "a"}},
		Hypervisor: models.HypervisorConfig{Enabled: true},
	}
	sum := newTestService(t, failingStore{}, targets).OverallStatus(context.Background())
	if sum.TotalServices != 1 || sum.Down != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

// --------------- DomainStatuses / ServerStatuses ---------------

func TestDomainStatuses(t *testing.T) {
	store := initTestDB(t)
	now := time.Now().UTC()
	for i := range 3 {
		appendDomain(t, store, "a", models.StatusOperational, now.Add(-time.Duration(i+2)*time.Hour))
	}
	appendDomain(t, store, "a", models.StatusDown, now.Add(-time.Hour))

	targets := &config.Targets{Domains: []models.Domain{{Name: "a", URL: "https://a"}, {Name: "b", URL: "https://b"}}}
	rows := newTestService(t, store, targets).DomainStatuses(context.Background())

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Status != models.StatusDown || rows[0].Uptime != 75 || rows[0].LastChecked == nil {
		t.Errorf("unexpected row a: %+v", rows[0])
	}
	if rows[1].Status != models.StatusDown || rows[1].Error != MsgNoData || rows[1].LastChecked != nil {
		t.Errorf("unexpected row b: %+v", rows[1])
	}
}

func TestDomainStatuses_StoreError(t *testing.T) {
	targets := &config.Targets{Domains: []models.Domain{{Name: "a"}}}
	rows := newTestService(t, failingStore{}, targets).DomainStatuses(context.Background())
	if len(rows) != 1 || rows[0].Error != MsgDBError {
		t.Errorf("expected database error row, got %+v", rows)
	}
}

func TestServerStatuses_IncludesGameServers(t *testing.T) {
	store := initTestDB(t)
	ctx := context.Background()
	store.Append(ctx, models.GameServerCheck{
		CheckRecord: models.CheckRecord{Kind: models.KindGameServer, Target: "mc", Status: models.StatusOperational, ResponseMS: intp(5), CheckedAt: time.Now()},
		Host:        "mc.local", Port: 25565, PlayersOnline: 2, MaxPlayers: 10, Version: "1.20",
	})

	targets := &config.Targets{
		Servers:     []models.Server{{Name: "ssh", Host: "h", Port: 22, Type: models.ServerTypeExternal}},
		GameServers: []models.GameServer{{Name: "mc", Host: "mc.local", Port: 25565}},
	}
	rows := newTestService(t, store, targets).ServerStatuses(ctx)

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Error != MsgNoData {
		t.Errorf("expected no data for ssh, got %+v", rows[0])
	}
	g := rows[1]
	if g.Type != models.ServerTypeGameServer || g.PlayersOnline == nil || *g.PlayersOnline != 2 || *g.MaxPlayers != 10 {
		t.Errorf("unexpected game row: %+v", g)
	}
}

// --------------- HypervisorStatus ---------------

func TestHypervisorStatus_Disabled(t *testing.T) {
	store := initTestDB(t)
	hs := newTestService(t, store, &config.Targets{}).HypervisorStatus(context.Background())
	if hs.Enabled || hs.Nodes == nil || len(hs.Nodes) != 0 {
		t.Errorf("unexpected status: %+v", hs)
	}
}

func TestHypervisorStatus_Guests(t *testing.T) {
	store := initTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	store.Append(ctx, models.GuestCheck{
		CheckRecord: models.CheckRecord{Kind: models.KindContainer, Target: "dns", Status: models.StatusOperational, CheckedAt: now},
		Node:        "pve1", VMID: 200, LifecycleStatus: "running",
	})

	targets := &config.Targets{Hypervisor: models.HypervisorConfig{Enabled: true}}
	hs := newTestService(t, store, targets).HypervisorStatus(ctx)
	if !hs.Enabled || len(hs.Containers) != 1 || len(hs.VMs) != 0 {
		t.Errorf("unexpected status: %+v", hs)
	}
}

func TestHypervisorStatus_NodeUptimeText(t *testing.T) {
	store := initTestDB(t)
	ctx := context.Background()
	store.Append(ctx, models.NodeCheck{
		CheckRecord:   models.CheckRecord{Kind: models.KindNode, Target: "pve1", Status: models.StatusOperational, CheckedAt: time.Now().UTC()},
		UptimeSeconds: 7200,
	})

	targets := &config.Targets{Hypervisor: models.HypervisorConfig{Enabled: true}}
	hs := newTestService(t, store, targets).HypervisorStatus(ctx)
	if len(hs.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(hs.Nodes))
	}
	if hs.Nodes[0].UptimeText != "2h" {
		t.Errorf("expected uptime text 2h, got %q", hs.Nodes[0].UptimeText)
	}
}

// --------------- ServiceHistory ---------------

func TestClampDays(t *testing.T) {
	cases := map[int]int{-5: 1, 0: 1, 1: 1, 7: 7, 28: 28, 90: 28}
	for in, want := range cases {
		if got := ClampDays(in); got != want {
			t.Errorf("ClampDays(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestBucketPoint(t *testing.T) {
	avg := 120.6
	tests := []struct {
		name   string
		b      models.HistoryBucket
		status models.Status
		uptime float64
	}{
		{"all up", models.HistoryBucket{Total: 4, Operational: 4}, models.StatusOperational, 100},
		{"some down", models.HistoryBucket{Total: 10, Operational: 8, Down: 2, AvgResponseMS: &avg}, models.StatusDown, 80},
		{"down beats degraded", models.HistoryBucket{Total: 3, Operational: 1, Degraded: 1, Down: 1}, models.StatusDown, 33.3},
		{"degraded", models.HistoryBucket{Total: 2, Operational: 1, Degraded: 1}, models.StatusDegraded, 50},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := BucketPoint(tc.b)
			if p.Status != tc.status || p.Uptime != tc.uptime {
				t.Errorf("got %s %v, want %s %v", p.Status, p.Uptime, tc.status, tc.uptime)
			}
		})
	}
	if p := BucketPoint(tests[1].b); p.AvgResponseTime != 121 {
		t.Errorf("expected avg 121, got %d", p.AvgResponseTime)
	}
}

func TestServiceHistory_Domains(t *testing.T) {
	store := initTestDB(t)
	now := time.Now().UTC()
	yesterday := now.Add(-24 * time.Hour)
	for range 8 {
		appendDomain(t, store, "a", models.StatusOperational, yesterday)
	}
	for range 2 {
		appendDomain(t, store, "a", models.StatusDown, yesterday)
	}
	appendDomain(t, store, "a", models.StatusOperational, now)

	svc := newTestService(t, store, &config.Targets{})
	points, err := svc.ServiceHistory(context.Background(), HistoryDomains, 7)
	if err != nil {
		t.Fatalf("ServiceHistory failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Date != now.Format("2006-01-02") || points[0].Status != models.StatusOperational {
		t.Errorf("unexpected newest point: %+v", points[0])
	}
	if points[1].Uptime != 80 || points[1].Status != models.StatusDown || points[1].AvgResponseTime != 100 {
		t.Errorf("unexpected older point: %+v", points[1])
	}
}

func TestServiceHistory_GameSuffix(t *testing.T) {
	store := initTestDB(t)
	store.Append(context.Background(), models.GameServerCheck{
		CheckRecord: models.CheckRecord{Kind: models.KindGameServer, Target: "mc", Status: models.StatusOperational, CheckedAt: time.Now()},
		Host:        "h", Port: 25565,
	})

	points, err := newTestService(t, store, &config.Targets{}).ServiceHistory(context.Background(), HistoryServers, 7)
	if err != nil {
		t.Fatalf("ServiceHistory failed: %v", err)
	}
	if len(points) != 1 || points[0].Service != "mc (game)" {
		t.Errorf("expected game suffix, got %+v", points)
	}
}

func TestServiceHistory_UnknownService(t *testing.T) {
	store := initTestDB(t)
	_, err := newTestService(t, store, &config.Targets{}).ServiceHistory(context.Background(), "databases", 7)
	if !errors.Is(err, ErrUnknownService) {
		t.Errorf("expected ErrUnknownService, got %v", err)
	}
}

func TestServiceHistory_StoreErrorEmpty(t *testing.T) {
	points, err := newTestService(t, failingStore{}, &config.Targets{}).ServiceHistory(context.Background(), HistoryProxmox, 7)
	if err != nil || points == nil || len(points) != 0 {
		t.Errorf("expected empty non-nil history, got %v %v", points, err)
	}
}

// --------------- Cache ---------------

func TestService_CachesUntilInvalidated(t *testing.T) {
	store := initTestDB(t)
	targets := &config.Targets{Domains: []models.Domain{{Name: "a"}}}
	svc := NewService(store, targets, time.Minute)
	defer svc.Close()
	ctx := context.Background()

	if got := svc.OverallStatus(ctx); got.Down != 1 {
		t.Fatalf("expected down before any record, got %+v", got)
	}
	appendDomain(t, store, "a", models.StatusOperational, time.Now())
	if got := svc.OverallStatus(ctx); got.Down != 1 {
		t.Errorf("expected cached summary, got %+v", got)
	}
	svc.Invalidate()
	if got := svc.OverallStatus(ctx); got.Operational != 1 {
		t.Errorf("expected fresh summary after invalidate, got %+v", got)
	}
}

func TestService_CancelledCallerDoesNotPoisonCache(t *testing.T) {
	store := initTestDB(t)
	appendDomain(t, store, "a", models.StatusOperational, time.Now())
	targets := &config.Targets{Domains: []models.Domain{{Name: "a"}}}
	svc := NewService(store, targets, 30*time.Second)
	defer svc.Close()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	if got := svc.OverallStatus(cancelled); got.Operational != 1 {
		t.Errorf("expected operational for cancelled caller, got %+v", got)
	}
	if got := svc.OverallStatus(context.Background()); got.Status != models.StatusOperational {
		t.Errorf("expected cached operational summary, got %+v", got)
	}
	rows := svc.DomainStatuses(cancelled)
	if len(rows) != 1 || rows[0].Error != "" || rows[0].Status != models.StatusOperational {
		t.Errorf("unexpected domain rows: %+v", rows)
	}
}
