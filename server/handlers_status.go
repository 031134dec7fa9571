package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/onnwee/chat-scribe/scrape"
)

// HandleStatus reports the scraper's runtime state for dashboards and
// debugging: which room, how long the process has been up, loop counters,
// and where the session log lives.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var stats scrape.Stats
	if loop := h.currentLoop(); loop != nil {
		stats = loop.Stats()
	}

	out := struct {
		Room           string       `json:"room"`
		UptimeSeconds  float64      `json:"uptime_seconds"`
		SessionLog     string       `json:"session_log"`
		ArchiveEnabled bool         `json:"archive_enabled"`
		Scrape         scrape.Stats `json:"scrape"`
	}{
		Room:           h.room,
		UptimeSeconds:  time.Since(h.startedAt).Seconds(),
		SessionLog:     h.logPath,
		ArchiveEnabled: h.db != nil,
		Scrape:         stats,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
