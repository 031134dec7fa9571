package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/onnwee/chat-scribe/scrape"
	"github.com/onnwee/chat-scribe/telemetry"
)

// DOM selectors for the platform's login flow and chat view. Kept in one
// place since they break together when the frontend redeploys.
const (
	selLandingLogin = `//button[text()='Login']`
	selUsername     = `input[autocomplete='username']`
	selPassword     = `input[autocomplete='current-password']`
	selLoginSubmit  = `//form//button[@type='submit']`
	selChatList     = `div[class*="overflow-y-scroll"]`
)

// Login walks the platform's login form and waits for the chat view to
// render. The whole flow is bounded by the configured login timeout; not
// reaching the chat view in time is an AuthError and the run must not proceed
// to polling.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	timeoutCtx, cancel := context.WithTimeout(ctx, s.cfg.LoginTimeout)
	defer cancel()

	s.logger.Info("logging in", slog.String("url", s.cfg.ChatURL), slog.String("username", s.cfg.ChatUsername))

	err := s.run(timeoutCtx,
		chromedp.Navigate(s.cfg.ChatURL),
		chromedp.Click(selLandingLogin, chromedp.BySearch),
		chromedp.WaitVisible(selUsername, chromedp.ByQuery),
		chromedp.SendKeys(selUsername, s.cfg.ChatUsername, chromedp.ByQuery),
		chromedp.SendKeys(selPassword, s.cfg.ChatPassword, chromedp.ByQuery),
		chromedp.Click(selLoginSubmit, chromedp.BySearch),
		// The chat view appearing is the post-login marker. Login pages that
		// re-render the form on bad credentials simply never show it.
		chromedp.WaitVisible(selChatList, chromedp.ByQuery),
	)
	if telemetry.LoginDuration != nil {
		telemetry.LoginDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if timeoutCtx.Err() == context.DeadlineExceeded {
			return &scrape.AuthError{Err: fmt.Errorf("chat view not reached within %s", s.cfg.LoginTimeout)}
		}
		return &scrape.AuthError{Err: err}
	}

	s.logger.Info("login complete", slog.Duration("took", time.Since(start)))
	return nil
}

// LoggedIn navigates to the chat URL and reports whether an authenticated
// session is already attached, which is the case when restored cookies are
// still valid and the chat view renders without a login form.
func (s *Session) LoggedIn(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkCtx, cancel := context.WithTimeout(ctx, s.cfg.LoginTimeout)
	defer cancel()

	err := s.run(checkCtx,
		chromedp.Navigate(s.cfg.ChatURL),
		chromedp.WaitVisible(selChatList, chromedp.ByQuery),
	)
	return err == nil
}
