package scrape

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// Message is one chat message as observed in the room's DOM. Immutable once
// extracted; the scraper never mutates or deletes records.
type Message struct {
	Username  string    `json:"username"`
	Timestamp string    `json:"timestamp"` // as rendered by the platform, e.g. "7:45 PM"
	Text      string    `json:"text"`
	IsReply   bool      `json:"is_reply,omitempty"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// idPrefixRunes bounds how much message text participates in the identifier.
const idPrefixRunes = 50

// ID returns the stable identifier used for dedupe. Ticker price snippets are
// normalized out first so a message whose rendered price updates between polls
// keeps the same identity.
func (m Message) ID() string {
	text := normalizeTickers(m.Text)
	if r := []rune(text); len(r) > idPrefixRunes {
		text = string(r[:idPrefixRunes])
	}
	return m.Timestamp + "_" + m.Username + "_" + text
}

// Ticker snippets render as "SYM\n+0.04%" (plain, delayed "SYM (D)", futures
// "ES1 (D)", or anything else parenthesized). The live percentage is replaced
// with a [PRICE] placeholder when computing message identity.
var tickerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`([A-Z]+)\n[+-]?\d+\.?\d*%`),
	regexp.MustCompile(`([A-Z]+\s*\([A-Z]\))\n[+-]?\d+\.?\d*%`),
	regexp.MustCompile(`([A-Z0-9]+\s*\([A-Z]\))\n[+-]?\d+\.?\d*%`),
	regexp.MustCompile(`([A-Z0-9]+\s*\([^)]+\))\n[+-]?\d+\.?\d*%`),
}

func normalizeTickers(text string) string {
	if !strings.Contains(text, "\n") || !strings.Contains(text, "%") {
		return text
	}
	for _, re := range tickerPatterns {
		text = re.ReplaceAllString(text, "${1}\n[PRICE]%")
	}
	return text
}

// SeenSet tracks message identifiers already logged this run. It grows
// monotonically and is discarded on process exit; dedupe across runs is the
// archive's job (unique msg_id), not the loop's. Safe for concurrent use:
// the status endpoint reads Len while the loop adds.
type SeenSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[string]struct{})}
}

func (s *SeenSet) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *SeenSet) Add(id string) {
	s.mu.Lock()
	s.ids[id] = struct{}{}
	s.mu.Unlock()
}

func (s *SeenSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// FilterNew returns the subset of polled messages whose IDs are not in seen,
// preserving document order. It never mutates seen, so calling it twice with
// the same inputs yields the same result.
func FilterNew(polled []Message, seen *SeenSet) []Message {
	var fresh []Message
	inBatch := make(map[string]struct{}, len(polled))
	for _, m := range polled {
		id := m.ID()
		if seen.Has(id) {
			continue
		}
		// The same message can be rendered twice during a DOM reflow; keep the
		// first occurrence within a single poll.
		if _, dup := inBatch[id]; dup {
			continue
		}
		inBatch[id] = struct{}{}
		fresh = append(fresh, m)
	}
	return fresh
}
