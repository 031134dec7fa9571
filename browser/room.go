package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chromedp/chromedp"

	"github.com/onnwee/chat-scribe/config"
	"github.com/onnwee/chat-scribe/scrape"
)

// ErrUnsupportedRoom is wrapped in the NavigationError returned when a room
// other than the supported one is requested.
var ErrUnsupportedRoom = errors.New("unsupported room")

// NavigateToRoom activates the requested room in the sidebar and waits for
// its message container. Only the default room is supported; anything else is
// rejected before a single DOM call is made.
func (s *Session) NavigateToRoom(ctx context.Context, room string) error {
	if room != config.DefaultRoom {
		return &scrape.NavigationError{Room: room, Err: ErrUnsupportedRoom}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("navigating to room", slog.String("room", room))

	err := s.run(ctx,
		chromedp.Click(fmt.Sprintf(`//span[text()='%s']`, room), chromedp.BySearch),
		chromedp.WaitVisible(selChatList, chromedp.ByQuery),
	)
	if err != nil {
		return &scrape.NavigationError{Room: room, Err: err}
	}
	return nil
}
