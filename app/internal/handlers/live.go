package handlers

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"infrastatus/app/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	defaultPushInterval = 10 * time.Second
)

var liveUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		return host == strings.ToLower(strings.TrimSpace(u.Host))
	},
}

// LiveSnapshot is one push on /api/live.
type LiveSnapshot struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	Overall     models.OverallStatusSummary `json:"overall"`
	Domains     []models.DomainStatus       `json:"domains"`
	Servers     []models.ServerStatus       `json:"servers"`
	Proxmox     models.HypervisorStatus     `json:"proxmox"`
}

func buildSnapshot(ctx context.Context, src StatusSource) LiveSnapshot {
	return LiveSnapshot{
		GeneratedAt: time.Now().UTC(),
		Overall:     src.OverallStatus(ctx),
		Domains:     src.DomainStatuses(ctx),
		Servers:     src.ServerStatuses(ctx),
		Proxmox:     src.HypervisorStatus(ctx),
	}
}

// HandleLive upgrades to a WebSocket and pushes a status snapshot on
// connect and then every interval.
func HandleLive(src StatusSource, interval time.Duration) http.HandlerFunc {
	if interval <= 0 {
		interval = defaultPushInterval
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := liveUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serveLive(r.Context(), conn, src, interval)
	}
}

func serveLive(ctx context.Context, conn *websocket.Conn, src StatusSource, interval time.Duration) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if err := writeSnapshot(conn, buildSnapshot(ctx, src)); err != nil {
		return
	}

	push := time.NewTicker(interval)
	defer push.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	// Clients never send anything useful; reading drives pong handling and
	// notices the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-push.C:
			if err := writeSnapshot(conn, buildSnapshot(ctx, src)); err != nil {
				log.Printf("live: push failed: %v", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap LiveSnapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(snap)
}
