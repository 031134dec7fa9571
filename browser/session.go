package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/onnwee/chat-scribe/config"
	"github.com/onnwee/chat-scribe/telemetry"
)

// Session owns one browser process and one page attached to the chat
// platform. The scrape loop and the HTTP send path share the page, so all
// DOM work serializes through mu.
type Session struct {
	cfg    *config.Config
	logger *slog.Logger
	mu     sync.Mutex

	allocCancel context.CancelFunc
	pageCtx     context.Context
	pageCancel  context.CancelFunc
}

// NewSession launches a browser and opens a blank page. The page navigates
// nowhere until Login or RestoreCookies is called. Close must be called even
// when a later step fails.
func NewSession(ctx context.Context, cfg *config.Config) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1280, 900),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	pageCtx, pageCancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so launch failures surface here
	// rather than on the first poll.
	if err := chromedp.Run(pageCtx); err != nil {
		pageCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	if telemetry.SessionOpens != nil {
		telemetry.SessionOpens.Inc()
	}
	telemetry.UpdateSessionGauge(true)

	return &Session{
		cfg:         cfg,
		logger:      slog.Default().With(slog.String("component", "browser")),
		allocCancel: allocCancel,
		pageCtx:     pageCtx,
		pageCancel:  pageCancel,
	}, nil
}

// Close tears down the page and the browser process.
func (s *Session) Close() {
	telemetry.UpdateSessionGauge(false)
	s.pageCancel()
	s.allocCancel()
}

// run executes actions on the session page, bounding them with the caller's
// context so a shutdown interrupts in-flight DOM waits.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := s.pageCtx
	if ctx != nil {
		var cancel context.CancelFunc
		runCtx, cancel = mergeContexts(s.pageCtx, ctx)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// mergeContexts returns a child of page that is additionally cancelled when
// outer is. chromedp contexts carry the devtools target in their values, so
// the page context must stay the parent.
func mergeContexts(page, outer context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(page)
	stop := context.AfterFunc(outer, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
