package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"infrastatus/app/internal/security"
	"infrastatus/app/internal/stats"
)

const defaultHistoryDays = 7

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// HandleOverall returns the fleet-wide rollup
func HandleOverall(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, src.OverallStatus(r.Context()))
	}
}

// HandleDomains returns one row per configured domain
func HandleDomains(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, src.DomainStatuses(r.Context()))
	}
}

// HandleServers returns TCP servers followed by game servers
func HandleServers(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, src.ServerStatuses(r.Context()))
	}
}

// HandleProxmox returns the latest hypervisor nodes and guests
func HandleProxmox(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, src.HypervisorStatus(r.Context()))
	}
}

// HandleHistory returns per-day buckets for one service group.
// days is clamped to 1..28 and defaults to 7.
func HandleHistory(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		service := q.Get("service")
		if service == "" {
			security.WriteError(w, http.StatusBadRequest, "bad_request", "service is required")
			return
		}

		days := defaultHistoryDays
		if v := q.Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				security.WriteError(w, http.StatusBadRequest, "bad_request", "days must be an integer")
				return
			}
			days = n
		}

		points, err := src.ServiceHistory(r.Context(), service, stats.ClampDays(days))
		if errors.Is(err, stats.ErrUnknownService) {
			security.WriteError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		if err != nil {
			security.WriteError(w, http.StatusInternalServerError, "server_error", "history unavailable")
			return
		}
		writeJSON(w, points)
	}
}
