package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/onnwee/chat-scribe/scrape"
	"github.com/onnwee/chat-scribe/telemetry"
)

// maxSendBytes bounds the request body; chat messages are short.
const maxSendBytes = 16 << 10

// HandleSend posts a message into the room through the live browser session.
// Protected by the admin token and per-IP rate limiting at the mux level.
func (h *Handlers) HandleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.sender == nil {
		http.Error(w, "no browser session attached", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSendBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	if telemetry.SendsAttempted != nil {
		telemetry.SendsAttempted.Inc()
	}
	if err := h.sender.SendMessage(r.Context(), req.Text); err != nil {
		if telemetry.SendsFailed != nil {
			telemetry.SendsFailed.Inc()
		}
		var sendErr *scrape.SendError
		if errors.As(err, &sendErr) {
			http.Error(w, sendErr.Error(), http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "sent"})
}
