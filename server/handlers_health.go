package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// HandleHealthz responds to liveness probe requests. The process is healthy
// as long as it can answer; a lost browser session is a readiness concern,
// not a liveness one.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"session_log", func() error {
			if h.logPath == "" {
				return fmt.Errorf("no session log open")
			}
			if _, err := os.Stat(h.logPath); err != nil {
				return fmt.Errorf("session log missing: %w", err)
			}
			return nil
		}},
		{"scrape_loop", func() error {
			loop := h.currentLoop()
			if loop == nil {
				return fmt.Errorf("scrape loop not started")
			}
			if s := loop.Stats(); s.State == "stopped" {
				return fmt.Errorf("scrape loop stopped")
			}
			return nil
		}},
		{"archive", func() error {
			if h.db == nil {
				return nil // archive disabled is a valid configuration
			}
			return h.db.PingContext(r.Context())
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}
