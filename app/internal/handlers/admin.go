package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"infrastatus/app/internal/auth"
	"infrastatus/app/internal/database"
	"infrastatus/app/internal/engine"
	"infrastatus/app/internal/models"
	"infrastatus/app/internal/security"
)

const (
	defaultAlertLimit = 100
	maxAlertLimit     = 1000
)

// HandleRunCycle runs one check cycle and returns its report.
// kind defaults to "all".
func HandleRunCycle(runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := r.URL.Query().Get("kind")
		if kind == "" {
			kind = engine.CycleAll
		}
		if !engine.ValidCycle(kind) {
			security.WriteError(w, http.StatusBadRequest, "bad_request", "unknown cycle kind "+strconv.Quote(kind))
			return
		}

		user, _ := auth.UserFromContext(r.Context())
		log.Printf("admin: %s triggered %s cycle", user, kind)

		report, err := runner.RunCycle(r.Context(), kind)
		resp := map[string]any{"success": err == nil, "report": report}
		if err != nil {
			resp["error"] = err.Error()
		}
		writeJSON(w, resp)
	}
}

// HandleCleanup purges records past retention
func HandleCleanup(runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := runner.Cleanup(r.Context())
		if err != nil {
			security.WriteError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		writeJSON(w, map[string]any{"success": true, "deleted": report, "total": report.Total()})
	}
}

// HandleTestConnections checks the database and the hypervisor API
func HandleTestConnections(runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := runner.TestConnections(r.Context())
		ok := true
		for _, res := range results {
			ok = ok && res.OK
		}
		writeJSON(w, map[string]any{"success": ok, "results": results})
	}
}

// HandleListAlerts returns alert events, newest first
func HandleListAlerts(store AdminStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := defaultAlertLimit
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = min(n, maxAlertLimit)
			}
		}
		unsent := q.Get("unsent") == "1" || q.Get("unsent") == "true"

		events, err := store.ListAlerts(r.Context(), unsent, limit)
		if err != nil {
			log.Printf("admin: list alerts: %v", err)
			security.WriteError(w, http.StatusInternalServerError, "server_error", "could not read alerts")
			return
		}
		if events == nil {
			events = []models.AlertEvent{}
		}
		writeJSON(w, events)
	}
}

// HandleAckAlert marks an alert event as delivered
func HandleAckAlert(store AdminStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		if err != nil || id <= 0 {
			security.WriteError(w, http.StatusBadRequest, "bad_request", "id must be a positive integer")
			return
		}
		err = store.MarkAlertSent(r.Context(), id, time.Now())
		if errors.Is(err, database.ErrNotFound) {
			security.WriteError(w, http.StatusNotFound, "not_found", "alert not found")
			return
		}
		if err != nil {
			log.Printf("admin: ack alert %d: %v", id, err)
			security.WriteError(w, http.StatusInternalServerError, "server_error", "could not update alert")
			return
		}
		writeJSON(w, map[string]any{"success": true, "id": id})
	}
}

// HandleDBStats returns row counts per history table
func HandleDBStats(store AdminStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tables, err := store.TableStats(r.Context())
		if err != nil {
			log.Printf("admin: table stats: %v", err)
			security.WriteError(w, http.StatusInternalServerError, "server_error", "could not read table stats")
			return
		}
		writeJSON(w, tables)
	}
}
