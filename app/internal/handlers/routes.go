package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"infrastatus/app/internal/auth"
	"infrastatus/app/internal/database"
	"infrastatus/app/internal/engine"
	"infrastatus/app/internal/models"
	"infrastatus/app/internal/ratelimit"
	"infrastatus/app/internal/security"
	"infrastatus/app/internal/stats"
)

// StatusSource is the read surface served by the public API.
type StatusSource interface {
	OverallStatus(ctx context.Context) models.OverallStatusSummary
	DomainStatuses(ctx context.Context) []models.DomainStatus
	ServerStatuses(ctx context.Context) []models.ServerStatus
	HypervisorStatus(ctx context.Context) models.HypervisorStatus
	ServiceHistory(ctx context.Context, service string, days int) ([]models.HistoryPoint, error)
}

// Runner is the command surface behind the admin API.
type Runner interface {
	RunCycle(ctx context.Context, kind string) (engine.CycleReport, error)
	Cleanup(ctx context.Context) (database.PurgeReport, error)
	TestConnections(ctx context.Context) []engine.ConnectionResult
}

// AdminStore is the part of database.Store the admin API reads.
type AdminStore interface {
	ListAlerts(ctx context.Context, unsentOnly bool, limit int) ([]models.AlertEvent, error)
	MarkAlertSent(ctx context.Context, id int64, at time.Time) error
	TableStats(ctx context.Context) ([]models.TableStat, error)
	GetLogs(limit int, level, category, service string, offset int) ([]models.LogEntry, error)
	GetLogStats() (*models.LogStats, error)
	ClearLogs(days int) error
}

var (
	_ StatusSource = (*stats.Service)(nil)
	_ Runner       = (*engine.Engine)(nil)
	_ AdminStore   = (*database.Store)(nil)
)

// Deps are the collaborators the router wires into its handlers.
type Deps struct {
	Status       StatusSource
	Runner       Runner
	Store        AdminStore
	Auth         *auth.Auth
	Allow        security.Allowlist
	Proxies      security.TrustedProxies
	PushInterval time.Duration
}

// Router is the root handler plus the limiters it owns.
type Router struct {
	http.Handler
	limiters []*ratelimit.Limiter
}

// Close stops the rate limiter sweepers.
func (rt *Router) Close() {
	for _, l := range rt.limiters {
		l.Stop()
	}
}

// SetupRoutes configures all HTTP routes and middlewares
func SetupRoutes(d Deps) *Router {
	apiLimit := ratelimit.New(ratelimit.APIConfig)
	loginLimit := ratelimit.New(ratelimit.LoginConfig)
	adminLimit := ratelimit.New(ratelimit.AdminConfig)

	// Public API routes
	api := http.NewServeMux()
	api.HandleFunc("GET /api/status", HandleOverall(d.Status))
	api.HandleFunc("GET /api/domains", HandleDomains(d.Status))
	api.HandleFunc("GET /api/servers", HandleServers(d.Status))
	api.HandleFunc("GET /api/proxmox", HandleProxmox(d.Status))
	api.HandleFunc("GET /api/history", HandleHistory(d.Status))

	// Admin API routes (with authentication)
	authAPI := http.NewServeMux()
	authAPI.HandleFunc("POST /api/admin/run", d.Auth.RequireAuth(HandleRunCycle(d.Runner)))
	authAPI.HandleFunc("POST /api/admin/cleanup", d.Auth.RequireAuth(HandleCleanup(d.Runner)))
	authAPI.HandleFunc("GET /api/admin/test", d.Auth.RequireAuth(HandleTestConnections(d.Runner)))
	authAPI.HandleFunc("GET /api/admin/alerts", d.Auth.RequireAuth(HandleListAlerts(d.Store)))
	authAPI.HandleFunc("POST /api/admin/alerts/ack", d.Auth.RequireAuth(HandleAckAlert(d.Store)))
	authAPI.HandleFunc("GET /api/admin/db-stats", d.Auth.RequireAuth(HandleDBStats(d.Store)))
	authAPI.HandleFunc("GET /api/admin/logs", d.Auth.RequireAuth(HandleGetLogs(d.Store)))
	authAPI.HandleFunc("GET /api/admin/logs/stats", d.Auth.RequireAuth(HandleGetLogStats(d.Store)))
	authAPI.HandleFunc("POST /api/admin/logs/clear", d.Auth.RequireAuth(HandleClearLogs(d.Store)))
	authAPI.HandleFunc("GET /api/me", d.Auth.RequireAuth(HandleWhoAmI()))

	// Main router
	mux := http.NewServeMux()
	mux.Handle("/api/admin/", d.Allow.RequireAllowed(security.RateLimit(adminLimit)(authAPI)))
	mux.Handle("/api/me", security.RateLimit(apiLimit)(authAPI))
	mux.Handle("POST /api/login", d.Allow.RequireAllowed(security.RateLimit(loginLimit)(HandleLogin(d.Auth))))
	mux.HandleFunc("GET /api/live", HandleLive(d.Status, d.PushInterval))
	mux.Handle("/api/", security.RateLimit(apiLimit)(api))

	return &Router{
		Handler:  security.SecureHeaders(d.Proxies.RealIP(GzipMiddleware(mux))),
		limiters: []*ratelimit.Limiter{apiLimit, loginLimit, adminLimit},
	}
}

// isUpgrade reports whether r asks to switch protocols.
func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
