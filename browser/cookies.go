package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// ExportCookies snapshots the browser's cookie jar as JSON. Saved after a
// successful login so the next run can skip the login form while the session
// cookie is still valid.
func (s *Session) ExportCookies(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("export cookies: %w", err)
	}

	b, err := json.Marshal(cookies)
	if err != nil {
		return "", fmt.Errorf("marshal cookies: %w", err)
	}
	return string(b), nil
}

// RestoreCookies loads a snapshot produced by ExportCookies into the fresh
// browser. Call before the first navigation; LoggedIn then tells whether the
// restored session is still accepted by the platform.
func (s *Session) RestoreCookies(ctx context.Context, snapshot string) error {
	if snapshot == "" {
		return nil
	}

	var cookies []*network.Cookie
	if err := json.Unmarshal([]byte(snapshot), &cookies); err != nil {
		return fmt.Errorf("unmarshal cookie snapshot: %w", err)
	}

	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.run(ctx, storage.SetCookies(params)); err != nil {
		return fmt.Errorf("restore cookies: %w", err)
	}
	return nil
}
