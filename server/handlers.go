package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/monitor"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	session *monitor.Session
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(session *monitor.Session) *Handlers {
	return &Handlers{session: session}
}

// HandleHealthz responds to liveness probe requests.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports ready once the monitor session has started its
// connect loop. The session being offline is not a readiness failure: the
// whole point of the client is to keep retrying through outages.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.session == nil || h.session.Snapshot().StartedAt.IsZero() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":       "not_ready",
			"failed_check": "monitor_session",
		})
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus returns the session snapshot plus uptime.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := h.session.Snapshot()
	out := struct {
		monitor.Snapshot
		UptimeSeconds float64 `json:"uptime_seconds"`
	}{Snapshot: snap}
	if !snap.StartedAt.IsZero() {
		out.UptimeSeconds = time.Since(snap.StartedAt).Seconds()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
