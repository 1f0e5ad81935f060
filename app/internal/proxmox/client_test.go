package proxmox

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/semaphore"

	"infrastatus/app/internal/models"
)

const (
	testTicket = "PVE:root@pam:TICKET"
	testCSRF   = "csrf-token"
)

var defaultRoutes = map[string]string{
	"/api2/json/nodes":                              `{"data":[{"node":"pve1","status":"online"},{"node":"pve2","status":"online"}]}`,
	"/api2/json/nodes/pve1/status":                  `{"data":{"cpu":0.25,"memory":{"used":4,"total":8},"rootfs":{"used":90,"total":100},"uptime":3600,"loadavg":["0.50","0.40","0.30"]}}`,
	"/api2/json/nodes/pve1/qemu":                    `{"data":[{"vmid":100,"name":"web","status":"running"},{"vmid":101,"name":"","status":"stopped"}]}`,
	"/api2/json/nodes/pve1/lxc":                     `{"data":[{"vmid":"200","name":"dns","status":"running"}]}`,
	"/api2/json/nodes/pve1/qemu/100/status/current": `{"data":{"status":"running","cpu":0.1,"mem":512,"maxmem":1024}}`,
	"/api2/json/nodes/pve1/lxc/200/status/current":  `{"data":{"status":"running","cpu":"0.05","mem":"256","maxmem":"1024"}}`,
	"/api2/json/nodes/pve2/qemu":                    `{"data":[]}`,
	"/api2/json/nodes/pve3/status":                  `{"data":{"cpu":0.1,"memory":{"used":0,"total":0},"rootfs":{"used":1,"total":0},"uptime":"42","loadavg":[]}}`,
	"/api2/json/nodes/pve3/qemu/300/status/current": `{"data":{"status":"running","qmpstatus":"paused","cpu":0,"mem":0,"maxmem":0}}`,
}

func newFakeAPI(t *testing.T, routes map[string]string) (*httptest.Server, models.HypervisorConfig) {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api2/json/access/ticket" {
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			_ = r.ParseForm()
			if r.PostForm.Get("username") != "root@pam" || r.PostForm.Get("password") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"data":null}`))
				return
			}
			_, _ = w.Write([]byte(`{"data":{"ticket":"` + testTicket + `","CSRFPreventionToken":"` + testCSRF + `","username":"root@pam"}}`))
			return
		}

		cookie, err := r.Cookie("PVEAuthCookie")
		if err != nil || cookie.Value != testTicket || r.Header.Get("CSRFPreventionToken") != testCSRF {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	return srv, models.HypervisorConfig{
		Enabled:  true,
		Host:     host,
		Port:     port,
		Username: "root",
		Password: "secret",
		Realm:    "pam",
	}
}

// --- NewClient ---

func TestNewClient_EstablishesSession(t *testing.T) {
	_, cfg := newFakeAPI(t, defaultRoutes)

	c, err := NewClient(t.Context(), cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	s := c.Session()
	if s.Ticket != testTicket || s.CSRFToken != testCSRF {
		t.Errorf("unexpected session %+v", s)
	}
	if s.Username != "root@pam" {
		t.Errorf("expected root@pam, got %s", s.Username)
	}
}

func TestNewClient_BadCredentials(t *testing.T) {
	_, cfg := newFakeAPI(t, defaultRoutes)
	cfg.Password = "wrong"

	_, err := NewClient(t.Context(), cfg)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	var apiErr *UpstreamAPIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected wrapped 401, got %v", err)
	}
}

func TestNewClient_VerifyTLSRejectsSelfSigned(t *testing.T) {
	_, cfg := newFakeAPI(t, defaultRoutes)
	cfg.VerifyTLS = true

	_, err := NewClient(t.Context(), cfg)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

// --- Resource calls ---

func TestNodeStatus_DerivesPercentages(t *testing.T) {
	_, cfg := newFakeAPI(t, defaultRoutes)
	c, err := NewClient(t.Context(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	m, err := c.NodeStatus(t.Context(), "pve1")
	if err != nil {
		t.Fatalf("NodeStatus failed: %v", err)
	}
	if m.CPUPercent != 25 || m.MemoryPercent != 50 || m.DiskPercent != 90 {
		t.Errorf("unexpected metrics %+v", m)
	}
	if m.UptimeSeconds != 3600 {
		t.Errorf("expected uptime 3600, got %d", m.UptimeSeconds)
	}
	if len(m.LoadAverage) != 3 || m.LoadAverage[0] != 0.5 {
		t.Errorf("unexpected load average %v", m.LoadAverage)
	}
}

func TestNodeStatus_ZeroTotals(t *testing.T) {
	_, cfg := newFakeAPI(t, defaultRoutes)
	c, err := NewClient(t.Context(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	m, err := c.NodeStatus(t.Context(), "pve3")
	if err != nil {
		t.Fatalf("NodeStatus failed: %v", err)
	}
	if m.MemoryPercent != 0 || m.DiskPercent != 0 {
		t.Errorf("zero totals should yield 0, got %+v", m)
	}
	if m.UptimeSeconds != 42 {
		t.Errorf("expected string uptime to parse, got %d", m.UptimeSeconds)
	}
}

func TestGuestStatus_QMPPaused(t *testing.T) {
	_, cfg := newFakeAPI(t, defaultRoutes)
	c, err := NewClient(t.Context(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	st, err := c.GuestStatus(t.Context(), "pve3", GuestQEMU, 300)
	if err != nil {
		t.Fatalf("GuestStatus failed: %v", err)
	}
	if st.Status != "paused" {
		t.Errorf("expected paused, got %s", st.Status)
	}
}

func TestGetJSON_UpstreamError(t *testing.T) {
	_, cfg := newFakeAPI(t, defaultRoutes)
	c, err := NewClient(t.Context(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.NodeStatus(t.Context(), "pve2")
	var apiErr *UpstreamAPIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected UpstreamAPIError, got %v", err)
	}
	if apiErr.StatusCode != 500 || apiErr.Body != "boom" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

// --- Walk ---

type collector struct {
	mu      sync.Mutex
	records []models.Record
}

func (c *collector) emit(r models.Record) {
	c.mu.Lock()
	c.records = append(c.records, r)
	c.mu.Unlock()
}

func (c *collector) find(kind models.Kind, name string) models.Record {
	for _, r := range c.records {
		if r.Common().Kind == kind && r.Common().Target == name {
			return r
		}
	}
	return nil
}

func TestWalk_IsolatesFailures(t *testing.T) {
	_, cfg := newFakeAPI(t, defaultRoutes)
	c, err := NewClient(t.Context(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	var col collector
	report, err := c.Walk(t.Context(), models.DefaultNodeLimits(), semaphore.NewWeighted(2), col.emit)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	if report.Nodes != 2 || report.Guests != 3 {
		t.Errorf("expected 2 nodes and 3 guests, got %+v", report)
	}

	pve1, ok := col.find(models.KindNode, "pve1").(models.NodeCheck)
	if !ok {
		t.Fatal("missing pve1 record")
	}
	if pve1.Status != models.StatusDegraded {
		t.Errorf("disk at 90%% should be degraded, got %s", pve1.Status)
	}

	pve2, ok := col.find(models.KindNode, "pve2").(models.NodeCheck)
	if !ok {
		t.Fatal("missing pve2 record")
	}
	if pve2.Status != models.StatusDown || pve2.Error == "" {
		t.Errorf("failed node status should be down with an error, got %+v", pve2)
	}

	web, ok := col.find(models.KindVM, "web").(models.GuestCheck)
	if !ok || web.Status != models.StatusOperational || web.MemoryPercent != 50 {
		t.Errorf("unexpected web record %+v", web)
	}

	unnamed, ok := col.find(models.KindVM, "VM-101").(models.GuestCheck)
	if !ok {
		t.Fatal("missing fallback-named VM")
	}
	if unnamed.Status != models.StatusDown || unnamed.LifecycleStatus != "unknown" {
		t.Errorf("failed guest status should be down/unknown, got %+v", unnamed)
	}

	dns, ok := col.find(models.KindContainer, "dns").(models.GuestCheck)
	if !ok || dns.VMID != 200 || dns.Status != models.StatusOperational {
		t.Errorf("unexpected container record %+v", dns)
	}

	if len(report.Errors) != 1 {
		t.Fatalf("expected one sub-resource error, got %v", report.Errors)
	}
	var sub *SubresourceError
	if !errors.As(report.Errors[0], &sub) || sub.Node != "pve2" || sub.Resource != GuestLXC {
		t.Errorf("unexpected sub-resource error %v", report.Errors[0])
	}
}

// countingGate tracks how many slots are held at once.
type countingGate struct {
	sem      *semaphore.Weighted
	held     atomic.Int64
	peak     atomic.Int64
	acquired atomic.Int64
}

func (g *countingGate) Acquire(ctx context.Context, n int64) error {
	if err := g.sem.Acquire(ctx, n); err != nil {
		return err
	}
	g.acquired.Add(n)
	h := g.held.Add(n)
	for {
		old := g.peak.Load()
		if h <= old || g.peak.CompareAndSwap(old, h) {
			return nil
		}
	}
}

func (g *countingGate) Release(n int64) {
	g.held.Add(-n)
	g.sem.Release(n)
}

func TestWalk_HoldsGatePerNode(t *testing.T) {
	_, cfg := newFakeAPI(t, defaultRoutes)
	c, err := NewClient(t.Context(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	gate := &countingGate{sem: semaphore.NewWeighted(1)}
	var col collector
	report, err := c.Walk(t.Context(), models.DefaultNodeLimits(), gate, col.emit)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	if report.Nodes != 2 {
		t.Errorf("expected 2 nodes, got %d", report.Nodes)
	}
	if gate.acquired.Load() != 2 || gate.peak.Load() != 1 || gate.held.Load() != 0 {
		t.Errorf("unexpected gate use: acquired %d, peak %d, held %d", gate.acquired.Load(), gate.peak.Load(), gate.held.Load())
	}
}

func TestWalk_NodeListFailureIsFatal(t *testing.T) {
	routes := map[string]string{}
	_, cfg := newFakeAPI(t, routes)
	c, err := NewClient(t.Context(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	var col collector
	_, err = c.Walk(t.Context(), models.DefaultNodeLimits(), semaphore.NewWeighted(1), col.emit)
	if err == nil {
		t.Fatal("expected an error when /nodes fails")
	}
	if len(col.records) != 0 {
		t.Errorf("no records should be emitted, got %d", len(col.records))
	}
}
