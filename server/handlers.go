package server

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/onnwee/chat-scribe/scrape"
)

// MessageSender posts a message into the room. Implemented by
// browser.Session; tests swap in a fake.
type MessageSender interface {
	SendMessage(ctx context.Context, text string) error
}

// Handlers contains HTTP handler dependencies. db is nil when the Postgres
// archive is disabled; the message endpoints answer 503 in that case. sender
// is nil until a browser session is attached.
type Handlers struct {
	db         *sql.DB
	sender     MessageSender
	room       string
	logPath    string
	adminToken string
	startedAt  time.Time

	mu   sync.RWMutex
	loop *scrape.Loop
}

// NewHandlers creates the handler set with its dependencies.
func NewHandlers(db *sql.DB, loop *scrape.Loop, sender MessageSender, room, logPath, adminToken string) *Handlers {
	return &Handlers{
		db:         db,
		loop:       loop,
		sender:     sender,
		room:       room,
		logPath:    logPath,
		adminToken: adminToken,
		startedAt:  time.Now().UTC(),
	}
}

// AttachLoop registers the active scrape loop. Called each time a browser
// session (re)starts; status and readiness then reflect the new loop.
func (h *Handlers) AttachLoop(loop *scrape.Loop) {
	h.mu.Lock()
	h.loop = loop
	h.mu.Unlock()
}

func (h *Handlers) currentLoop() *scrape.Loop {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loop
}
