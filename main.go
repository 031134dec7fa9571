// Command chat-scribe logs into a web chat platform with a headless browser,
// attaches to a room, and records every message it renders. It:
//   - Loads configuration and initializes structured logging.
//   - Opens a timestamped append-only JSONL session log.
//   - Optionally connects to Postgres and archives messages with cross-run dedupe.
//   - Polls the room's DOM on a fixed interval, logging each message once.
//   - Exposes an HTTP server with /healthz, /readyz, /status, /metrics, the
//     archived message listing, an SSE tail, and a token-protected send endpoint.
//
// Shutdown is graceful on SIGINT/SIGTERM; the session log survives crashes at
// any point.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/chat-scribe/browser"
	"github.com/onnwee/chat-scribe/chatlog"
	"github.com/onnwee/chat-scribe/config"
	"github.com/onnwee/chat-scribe/db"
	"github.com/onnwee/chat-scribe/scrape"
	"github.com/onnwee/chat-scribe/server"
	"github.com/onnwee/chat-scribe/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	// Credentials are checked before any browser starts; a missing login can
	// only ever fail fast, never half-start a session.
	if err := cfg.ValidateScrapeReady(); err != nil {
		slog.Error("not configured to scrape", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("chat-scribe", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Postgres archive is optional; the JSONL session log is always on.
	var database *sql.DB
	if cfg.ArchiveEnabled() {
		database, err = db.Connect(cfg.DBDsn)
		if err != nil {
			slog.Error("failed to open db", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		migCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.Migrate(migCtx, database); err != nil {
			cancel()
			slog.Error("migrations failed", slog.Any("err", err))
			os.Exit(1)
		}
		cancel()
	} else {
		slog.Info("DB_DSN not set, archive disabled; session log only")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session log: one append-only JSONL file per run.
	logWriter, err := chatlog.NewWriter(cfg.LogDir, time.Now())
	if err != nil {
		slog.Error("failed to open session log", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := logWriter.Close(); err != nil {
			slog.Error("failed to close session log", slog.Any("err", err))
		}
	}()
	slog.Info("session log open", slog.String("path", logWriter.Path()))

	var secondary []scrape.Sink
	if database != nil {
		secondary = append(secondary, &db.ArchiveSink{DB: database, Room: cfg.ChatRoom})
	}

	// The seen set outlives individual browser sessions so a restart after a
	// lost session never re-logs messages already written this run.
	seen := scrape.NewSeenSet()

	// HTTP server. The loop and sender are registered once the first browser
	// session is up; until then the send endpoint answers 503.
	reg := &sessionRegistry{}
	handlers := server.NewHandlers(database, nil, reg, cfg.ChatRoom, logWriter.Path(), cfg.AdminToken)
	if cfg.AdminToken == "" {
		slog.Warn("ADMIN_TOKEN not set, /send is unprotected")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx, handlers, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited", slog.Any("err", err))
		}
	}()

	exitCode := runScrape(ctx, cfg, database, logWriter, secondary, seen, handlers, reg)

	stop()
	wg.Wait()
	os.Exit(exitCode)
}

// sessionRegistry lets the HTTP send handler follow the current browser
// session across restarts.
type sessionRegistry struct {
	mu      sync.Mutex
	session *browser.Session
}

func (r *sessionRegistry) set(s *browser.Session) {
	r.mu.Lock()
	r.session = s
	r.mu.Unlock()
}

func (r *sessionRegistry) SendMessage(ctx context.Context, text string) error {
	r.mu.Lock()
	s := r.session
	r.mu.Unlock()
	if s == nil {
		return &scrape.SendError{Err: errors.New("no browser session attached")}
	}
	return s.SendMessage(ctx, text)
}

// runScrape opens a browser session and runs the poll loop until shutdown or
// an unrecoverable failure. With SESSION_RESTART_ON_LOSS=1 a lost session is
// reopened (fresh login, shared seen set) instead of ending the run.
func runScrape(ctx context.Context, cfg *config.Config, database *sql.DB, logWriter *chatlog.Writer, secondary []scrape.Sink, seen *scrape.SeenSet, handlers *server.Handlers, reg *sessionRegistry) int {
	for {
		err := runSession(ctx, cfg, database, logWriter, secondary, seen, handlers, reg)
		if err == nil {
			slog.Info("scrape finished cleanly")
			return 0
		}
		if ctx.Err() != nil {
			return 0
		}
		if scrape.IsSessionLost(err) && cfg.RestartOnLoss {
			slog.Warn("session lost, restarting browser", slog.Any("err", err))
			continue
		}
		slog.Error("scrape failed", slog.Any("err", err))
		return 1
	}
}

func runSession(ctx context.Context, cfg *config.Config, database *sql.DB, logWriter *chatlog.Writer, secondary []scrape.Sink, seen *scrape.SeenSet, handlers *server.Handlers, reg *sessionRegistry) error {
	session, err := browser.NewSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer session.Close()
	reg.set(session)
	defer reg.set(nil)

	// Try a saved cookie snapshot first; a still-valid session skips the
	// login form entirely.
	loggedIn := false
	if database != nil {
		if snapshot, err := db.LoadSessionCookies(ctx, database); err != nil {
			slog.Warn("cookie restore failed", slog.Any("err", err))
		} else if snapshot != "" {
			if err := session.RestoreCookies(ctx, snapshot); err != nil {
				slog.Warn("cookie restore failed", slog.Any("err", err))
			} else if session.LoggedIn(ctx) {
				slog.Info("resumed session from saved cookies")
				loggedIn = true
			}
		}
	}

	if !loggedIn {
		if err := session.Login(ctx); err != nil {
			return err
		}
		if database != nil {
			if snapshot, err := session.ExportCookies(ctx); err != nil {
				slog.Warn("cookie export failed", slog.Any("err", err))
			} else if err := db.SaveSessionCookies(ctx, database, snapshot); err != nil {
				slog.Warn("cookie save failed", slog.Any("err", err))
			}
		}
	}

	if err := session.NavigateToRoom(ctx, cfg.ChatRoom); err != nil {
		return err
	}

	loop := scrape.NewLoop(session, logWriter, secondary, seen, cfg.PollInterval, cfg.ContainerRetryBudget)
	handlers.AttachLoop(loop)
	return loop.Run(ctx)
}
