package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/chat-scribe/telemetry"
)

// State is the loop's lifecycle state: Idle before Run is called, Polling
// while cycling, Stopped after a clean stop or session loss.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Poller reads the currently rendered messages of the room, in document
// order, both previously seen and new. Implemented by browser.Session.
type Poller interface {
	Poll(ctx context.Context) ([]Message, error)
}

// Sink persists a batch of new messages. Append must flush to durable storage
// before returning so that a crash immediately afterwards loses nothing from
// the batch.
type Sink interface {
	Append(ctx context.Context, msgs []Message) error
}

// Stats is a point-in-time snapshot for the /status endpoint.
type Stats struct {
	State          string    `json:"state"`
	Cycles         uint64    `json:"cycles"`
	MessagesLogged uint64    `json:"messages_logged"`
	SeenSize       int       `json:"seen_size"`
	LastPoll       time.Time `json:"last_poll,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
}

// Loop drives the poll → filter → append cycle at a fixed interval.
type Loop struct {
	poller    Poller
	primary   Sink
	secondary []Sink
	seen      *SeenSet
	interval  time.Duration
	budget    int

	mu    sync.Mutex
	stats Stats
}

// NewLoop wires a loop over poller. primary is the session log: a failed
// append there stops the run. secondary sinks (the archive) are best-effort.
// seen is shared across session restarts so a restart never re-logs messages.
func NewLoop(poller Poller, primary Sink, secondary []Sink, seen *SeenSet, interval time.Duration, containerRetryBudget int) *Loop {
	if seen == nil {
		seen = NewSeenSet()
	}
	return &Loop{
		poller:    poller,
		primary:   primary,
		secondary: secondary,
		seen:      seen,
		interval:  interval,
		budget:    containerRetryBudget,
		stats:     Stats{State: StateIdle.String()},
	}
}

// Stats returns a snapshot safe to read while the loop runs.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.SeenSize = l.seen.Len()
	return s
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.stats.State = s.String()
	l.mu.Unlock()
}

// Run cycles until ctx is cancelled (returns nil: a clean stop) or the
// session is lost (returns *SessionLostError). Messages are appended in the
// order they were first observed; the seen set guarantees each message is
// logged at most once per run.
func (l *Loop) Run(ctx context.Context) error {
	l.setState(StatePolling)
	defer l.setState(StateStopped)

	logger := slog.Default().With(slog.String("component", "scrape_loop"))
	logger.Info("started", slog.Duration("interval", l.interval))

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	failStreak := 0
	for {
		// Stop is checked once per cycle, before the poll, never mid-cycle.
		if ctx.Err() != nil {
			logger.Info("stopped")
			return nil
		}

		if err := l.cycle(ctx, logger, &failStreak); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			logger.Info("stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (l *Loop) cycle(ctx context.Context, logger *slog.Logger, failStreak *int) error {
	start := time.Now()
	polled, err := l.poller.Poll(ctx)
	if telemetry.ScrapeCycles != nil {
		telemetry.ScrapeCycles.Inc()
	}
	if telemetry.PollDuration != nil {
		telemetry.PollDuration.Observe(time.Since(start).Seconds())
	}

	l.mu.Lock()
	l.stats.Cycles++
	l.stats.LastPoll = time.Now().UTC()
	if err != nil {
		l.stats.LastError = err.Error()
	} else {
		l.stats.LastError = ""
	}
	l.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return nil // shutdown raced the poll; not a session loss
		}
		if telemetry.PollErrors != nil {
			telemetry.PollErrors.Inc()
		}
		if ClassifyPollError(err) == ErrorClassSessionLost {
			return &SessionLostError{Err: err}
		}
		*failStreak++
		logger.Warn("poll failed", slog.Any("err", err), slog.Int("streak", *failStreak), slog.Int("budget", l.budget))
		if *failStreak >= l.budget {
			return &SessionLostError{Err: fmt.Errorf("%d consecutive poll failures, last: %w", *failStreak, err)}
		}
		return nil
	}
	*failStreak = 0

	fresh := FilterNew(polled, l.seen)
	if len(fresh) == 0 {
		return nil
	}

	if err := l.primary.Append(ctx, fresh); err != nil {
		return fmt.Errorf("append session log: %w", err)
	}
	for _, s := range l.secondary {
		if err := s.Append(ctx, fresh); err != nil {
			logger.Warn("secondary sink append failed", slog.Any("err", err))
		}
	}
	// Mark seen only after the primary append succeeded, so a failed write is
	// retried on the next cycle rather than silently dropped.
	for _, m := range fresh {
		l.seen.Add(m.ID())
	}

	if telemetry.MessagesLogged != nil {
		telemetry.MessagesLogged.Add(float64(len(fresh)))
	}
	telemetry.SetSeenSetSize(l.seen.Len())
	l.mu.Lock()
	l.stats.MessagesLogged += uint64(len(fresh))
	l.mu.Unlock()

	last := fresh[len(fresh)-1]
	logger.Info("new messages", slog.Int("count", len(fresh)),
		slog.String("latest_user", last.Username), slog.String("latest_time", last.Timestamp))
	return nil
}
