package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/onnwee/chat-scribe/db"
)

// streamPollInterval is how often the SSE tail re-queries the archive for
// rows past its cursor.
const streamPollInterval = 2 * time.Second

// maxReplayGap caps the pause between two replayed messages so a quiet hour
// in the archive does not stall the stream for an hour.
const maxReplayGap = 10 * time.Second

// roomParam returns the room query override, falling back to the room the
// scraper is attached to.
func (h *Handlers) roomParam(r *http.Request) string {
	if room := r.URL.Query().Get("room"); room != "" {
		return room
	}
	return h.room
}

// HandleMessages returns archived messages as JSON in insertion order.
// Params: room (default: the scraped room), after_id (cursor, default 0),
// limit (default 100, max 1000). Answers 503 when the archive is disabled;
// the JSONL session log on disk is the only record then.
func (h *Handlers) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.db == nil {
		http.Error(w, "archive disabled", http.StatusServiceUnavailable)
		return
	}

	afterID := int64(parseIntQuery(r, "after_id", 0))
	limit := parseIntQuery(r, "limit", 100)

	msgs, err := db.ListMessages(r.Context(), h.db, h.roomParam(r), afterID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []db.StoredMessage{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(msgs)
}

// HandleMessagesStream serves the archive over Server-Sent Events. It replays
// rows past after_id, then keeps the connection open and emits new rows as
// the scrape loop archives them, until the client disconnects.
// Params: room, after_id, speed. With speed > 0 the replay is paced by the
// scraped_at gaps between messages divided by speed (speed=1 is real time);
// with speed unset or 0 the backlog is flushed immediately.
func (h *Handlers) HandleMessagesStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.db == nil {
		http.Error(w, "archive disabled", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	room := h.roomParam(r)
	cursor := int64(parseIntQuery(r, "after_id", 0))
	speed := parseFloat64Query(r, "speed", 0)
	ctx := r.Context()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	var prevScraped time.Time
	for {
		msgs, err := db.ListMessages(ctx, h.db, room, cursor, 500)
		if err != nil {
			fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
			flusher.Flush()
			return
		}
		for _, m := range msgs {
			if speed > 0 && !prevScraped.IsZero() {
				gap := time.Duration(float64(m.ScrapedAt.Sub(prevScraped)) / speed)
				if gap > maxReplayGap {
					gap = maxReplayGap
				}
				if gap > 0 {
					select {
					case <-ctx.Done():
						return
					case <-time.After(gap):
					}
				}
			}
			prevScraped = m.ScrapedAt

			data, err := json.Marshal(m)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: message\ndata: %s\n\n", m.ID, data)
			flusher.Flush()
			cursor = m.ID
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
