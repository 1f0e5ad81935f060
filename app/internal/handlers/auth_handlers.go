package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"infrastatus/app/internal/auth"
	"infrastatus/app/internal/security"
)

// HandleWhoAmI returns the user the bearer token was issued to
func HandleWhoAmI() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFromContext(r.Context())
		writeJSON(w, map[string]any{"authenticated": true, "user": user})
	}
}

// HandleLogin exchanges admin credentials for a bearer token
func HandleLogin(authMgr *auth.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authMgr.Enabled() {
			security.WriteError(w, http.StatusServiceUnavailable, "admin_disabled", "Admin API is disabled")
			return
		}

		var c struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			security.WriteError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}

		ip := security.ClientIP(r)
		if !authMgr.CheckCredentials(c.Username, c.Password) {
			log.Printf("login: failed attempt for %q from %s", c.Username, ip)
			security.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid username or password")
			return
		}

		token, exp, err := authMgr.GenerateToken(c.Username)
		if err != nil {
			log.Printf("login: sign token: %v", err)
			security.WriteError(w, http.StatusInternalServerError, "server_error", "could not issue token")
			return
		}
		log.Printf("login: %s authenticated from %s", c.Username, ip)
		writeJSON(w, map[string]any{
			"token":      token,
			"token_type": "Bearer",
			"expires_at": exp.UTC().Format(time.RFC3339),
		})
	}
}
