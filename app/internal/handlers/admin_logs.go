package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"infrastatus/app/internal/models"
	"infrastatus/app/internal/security"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 500
)

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// HandleGetLogs returns system logs with optional filtering
func HandleGetLogs(store AdminStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := min(max(queryInt(r, "limit", defaultLogLimit), 1), maxLogLimit)
		offset := max(queryInt(r, "offset", 0), 0)

		q := r.URL.Query()
		logs, err := store.GetLogs(limit, q.Get("level"), q.Get("category"), q.Get("service"), offset)
		if err != nil {
			log.Printf("admin: get logs: %v", err)
			security.WriteError(w, http.StatusInternalServerError, "server_error", "could not read logs")
			return
		}
		if logs == nil {
			logs = []models.LogEntry{}
		}

		writeJSON(w, map[string]any{
			"logs":   logs,
			"limit":  limit,
			"offset": offset,
		})
	}
}

// HandleGetLogStats returns log counts by level
func HandleGetLogStats(store AdminStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := store.GetLogStats()
		if err != nil {
			log.Printf("admin: log stats: %v", err)
			security.WriteError(w, http.StatusInternalServerError, "server_error", "could not read log stats")
			return
		}
		writeJSON(w, st)
	}
}

// HandleClearLogs clears logs older than the given number of days
func HandleClearLogs(store AdminStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Days int `json:"days"` // 0 means clear all
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			security.WriteError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}
		if req.Days < 0 {
			security.WriteError(w, http.StatusBadRequest, "bad_request", "days must not be negative")
			return
		}

		if err := store.ClearLogs(req.Days); err != nil {
			log.Printf("admin: clear logs: %v", err)
			security.WriteError(w, http.StatusInternalServerError, "server_error", "could not clear logs")
			return
		}
		writeJSON(w, map[string]any{"success": true})
	}
}
