// Package testutil holds shared test fakes and database helpers.
package testutil

import (
	"context"
	"sync"

	"github.com/onnwee/chat-scribe/scrape"
)

// ScriptedPoller returns canned poll results in sequence. After the script is
// exhausted it keeps returning the final entry, which matches a chat page
// that has stopped changing.
type ScriptedPoller struct {
	mu    sync.Mutex
	Steps []PollStep
	calls int
}

// PollStep is one scripted poll outcome: either a message snapshot or an error.
type PollStep struct {
	Messages []scrape.Message
	Err      error
}

func (p *ScriptedPoller) Poll(ctx context.Context) ([]scrape.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Steps) == 0 {
		return nil, nil
	}
	i := p.calls
	if i >= len(p.Steps) {
		i = len(p.Steps) - 1
	}
	p.calls++
	step := p.Steps[i]
	return step.Messages, step.Err
}

// Calls returns how many times Poll has been invoked.
func (p *ScriptedPoller) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// RecordingSink collects every appended batch. FailWith, when set, is
// returned from Append without recording.
type RecordingSink struct {
	mu       sync.Mutex
	Batches  [][]scrape.Message
	FailWith error
}

func (s *RecordingSink) Append(ctx context.Context, msgs []scrape.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	batch := make([]scrape.Message, len(msgs))
	copy(batch, msgs)
	s.Batches = append(s.Batches, batch)
	return nil
}

// All returns every recorded message in append order.
func (s *RecordingSink) All() []scrape.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []scrape.Message
	for _, b := range s.Batches {
		out = append(out, b...)
	}
	return out
}
