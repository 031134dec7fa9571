package browser

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/onnwee/chat-scribe/scrape"
)

// extractMessagesJS reads every rendered message row out of the chat list in
// document order. It runs as a single Evaluate so the DOM cannot reflow
// between finding the container and reading its children. Rows that are
// mid-render (no username yet) are skipped; they come back complete on the
// next poll.
const extractMessagesJS = `(() => {
	const container = document.querySelector('div[class*="overflow-y-scroll"]');
	if (!container) {
		return { found: false, messages: [] };
	}
	const messages = [];
	for (const row of container.children) {
		const userEl = row.querySelector('span[class*="font-semibold"], span[class*="font-bold"]');
		const timeEl = row.querySelector('span[class*="text-xs"]');
		const textEl = row.querySelector('div[class*="break-words"], p');
		if (!userEl || !textEl) {
			continue;
		}
		const replyEl = row.querySelector('div[class*="border-l"] span[class*="font-semibold"]');
		messages.push({
			username: userEl.innerText.trim(),
			timestamp: timeEl ? timeEl.innerText.trim() : '',
			text: textEl.innerText,
			is_reply: !!replyEl,
			reply_to: replyEl ? replyEl.innerText.trim() : '',
		});
	}
	return { found: true, messages: messages };
})()`

type extractResult struct {
	Found    bool `json:"found"`
	Messages []struct {
		Username  string `json:"username"`
		Timestamp string `json:"timestamp"`
		Text      string `json:"text"`
		IsReply   bool   `json:"is_reply"`
		ReplyTo   string `json:"reply_to"`
	} `json:"messages"`
}

// Poll implements scrape.Poller. It returns every message currently rendered
// in the room, seen or not; dedupe is the loop's job. A missing container
// maps to scrape.ErrContainerMissing so the loop can ride out transient page
// states.
func (s *Session) Poll(ctx context.Context) ([]scrape.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res extractResult
	if err := s.run(ctx, chromedp.Evaluate(extractMessagesJS, &res)); err != nil {
		return nil, err
	}
	if !res.Found {
		return nil, scrape.ErrContainerMissing
	}

	now := time.Now().UTC()
	out := make([]scrape.Message, 0, len(res.Messages))
	for _, m := range res.Messages {
		out = append(out, scrape.Message{
			Username:  m.Username,
			Timestamp: m.Timestamp,
			Text:      m.Text,
			IsReply:   m.IsReply,
			ReplyTo:   m.ReplyTo,
			ScrapedAt: now,
		})
	}
	return out, nil
}
