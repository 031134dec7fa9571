package browser

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/onnwee/chat-scribe/scrape"
)

const selComposer = `textarea`

// SendMessage types text into the room's composer and submits it with Enter.
// Failures are SendErrors and never tear down the session; the poll loop
// keeps running regardless.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return &scrape.SendError{Err: errors.New("empty message")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.run(ctx,
		chromedp.WaitVisible(selComposer, chromedp.ByQuery),
		chromedp.Click(selComposer, chromedp.ByQuery),
		chromedp.SendKeys(selComposer, text, chromedp.ByQuery),
		chromedp.SendKeys(selComposer, kb.Enter, chromedp.ByQuery),
	)
	if err != nil {
		return &scrape.SendError{Err: err}
	}

	s.logger.Info("message sent", slog.Int("chars", len(text)))
	return nil
}
