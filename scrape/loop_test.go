package scrape_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/chat-scribe/scrape"
	"github.com/onnwee/chat-scribe/testutil"
)

func msgs(pairs ...[2]string) []scrape.Message {
	out := make([]scrape.Message, 0, len(pairs))
	for i, p := range pairs {
		out = append(out, scrape.Message{Username: p[0], Timestamp: p[1], Text: "m" + p[1], ScrapedAt: time.Unix(int64(i), 0)})
	}
	return out
}

func newTestLoop(p scrape.Poller, primary scrape.Sink, secondary []scrape.Sink, budget int) *scrape.Loop {
	return scrape.NewLoop(p, primary, secondary, scrape.NewSeenSet(), time.Millisecond, budget)
}

func TestLoopLogsEachMessageOnce(t *testing.T) {
	first := msgs([2]string{"alice", "t1"}, [2]string{"bob", "t2"})
	second := append(first, scrape.Message{Username: "carol", Timestamp: "t3", Text: "hey"})
	poller := &testutil.ScriptedPoller{Steps: []testutil.PollStep{
		{Messages: first},
		{Messages: second},
		{Messages: second},
	}}
	sink := &testutil.RecordingSink{}
	loop := newTestLoop(poller, sink, nil, 5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	waitFor(t, func() bool { return poller.Calls() >= 4 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v, want nil on cancellation", err)
	}

	all := sink.All()
	if len(all) != 3 {
		t.Fatalf("logged %d messages, want 3 (no duplicates): %+v", len(all), all)
	}
	for i, want := range []string{"alice", "bob", "carol"} {
		if all[i].Username != want {
			t.Errorf("log position %d = %s, want %s (document order)", i, all[i].Username, want)
		}
	}

	stats := loop.Stats()
	if stats.MessagesLogged != 3 || stats.SeenSize != 3 {
		t.Errorf("stats = %+v, want 3 logged / 3 seen", stats)
	}
	if stats.State != "stopped" {
		t.Errorf("state after Run = %q, want stopped", stats.State)
	}
}

func TestLoopStopsAfterContainerRetryBudget(t *testing.T) {
	poller := &testutil.ScriptedPoller{Steps: []testutil.PollStep{
		{Err: scrape.ErrContainerMissing},
	}}
	loop := newTestLoop(poller, &testutil.RecordingSink{}, nil, 3)

	err := loop.Run(context.Background())
	if !scrape.IsSessionLost(err) {
		t.Fatalf("Run = %v, want SessionLostError after budget exhausted", err)
	}
	if !errors.Is(err, scrape.ErrContainerMissing) {
		t.Errorf("SessionLostError should wrap the container error, got %v", err)
	}
	if poller.Calls() != 3 {
		t.Errorf("polled %d times, want exactly the budget of 3", poller.Calls())
	}
}

func TestLoopTransientFailureThenRecovery(t *testing.T) {
	batch := msgs([2]string{"alice", "t1"})
	poller := &testutil.ScriptedPoller{Steps: []testutil.PollStep{
		{Err: scrape.ErrContainerMissing},
		{Err: scrape.ErrContainerMissing},
		{Messages: batch},
	}}
	sink := &testutil.RecordingSink{}
	loop := newTestLoop(poller, sink, nil, 5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	waitFor(t, func() bool { return len(sink.All()) == 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run = %v, want nil: the streak must reset after a good poll", err)
	}
}

func TestLoopSessionLostErrorStopsImmediately(t *testing.T) {
	poller := &testutil.ScriptedPoller{Steps: []testutil.PollStep{
		{Err: errors.New("chromedp: target closed")},
	}}
	loop := newTestLoop(poller, &testutil.RecordingSink{}, nil, 5)

	err := loop.Run(context.Background())
	if !scrape.IsSessionLost(err) {
		t.Fatalf("Run = %v, want SessionLostError", err)
	}
	if poller.Calls() != 1 {
		t.Errorf("polled %d times, want 1: a dead target is not retried", poller.Calls())
	}
}

func TestLoopPrimarySinkFailureIsFatal(t *testing.T) {
	poller := &testutil.ScriptedPoller{Steps: []testutil.PollStep{
		{Messages: msgs([2]string{"alice", "t1"})},
	}}
	sink := &testutil.RecordingSink{FailWith: errors.New("disk full")}
	loop := newTestLoop(poller, sink, nil, 5)

	err := loop.Run(context.Background())
	if err == nil || scrape.IsSessionLost(err) {
		t.Fatalf("Run = %v, want a non-session-lost fatal error", err)
	}
}

func TestLoopSecondarySinkFailureIsNotFatal(t *testing.T) {
	batch := msgs([2]string{"alice", "t1"})
	poller := &testutil.ScriptedPoller{Steps: []testutil.PollStep{{Messages: batch}}}
	primary := &testutil.RecordingSink{}
	secondary := &testutil.RecordingSink{FailWith: errors.New("archive down")}
	loop := newTestLoop(poller, primary, []scrape.Sink{secondary}, 5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	waitFor(t, func() bool { return len(primary.All()) == 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run = %v, want nil: archive failures must not stop scraping", err)
	}
}

func TestLoopStopCheckedBeforeFirstPoll(t *testing.T) {
	poller := &testutil.ScriptedPoller{Steps: []testutil.PollStep{
		{Messages: msgs([2]string{"alice", "t1"})},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop := newTestLoop(poller, &testutil.RecordingSink{}, nil, 5)
	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run = %v, want nil on pre-cancelled context", err)
	}
	if poller.Calls() != 0 {
		t.Errorf("polled %d times on a stopped loop, want 0", poller.Calls())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}
