package chatlog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/chat-scribe/scrape"
)

func testMessages() []scrape.Message {
	return []scrape.Message{
		{Username: "alice", Timestamp: "t1", Text: "hi", ScrapedAt: time.Now().UTC()},
		{Username: "bob", Timestamp: "t2", Text: "yo", ScrapedAt: time.Now().UTC()},
	}
}

func TestWriterNamesFileByRunStart(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	w, err := NewWriter(dir, start)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()
	want := filepath.Join(dir, "session_20260301_093000.jsonl")
	if w.Path() != want {
		t.Errorf("Path() = %q, want %q", w.Path(), want)
	}
}

func TestWriterCreatesLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "chat_logs")
	w, err := NewWriter(dir, time.Now())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("log directory not created: %v", err)
	}
}

// Crash simulation: everything passed to a returned Append call must already
// be on disk, even though the writer is never closed.
func TestAppendDurableWithoutClose(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, time.Now())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	msgs := testMessages()
	if err := w.Append(context.Background(), msgs); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// Deliberately no Close before reading.
	got, err := Read(w.Path())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != len(msgs) {
		t.Fatalf("read %d records, want %d", len(got), len(msgs))
	}
	for i := range msgs {
		if got[i].Username != msgs[i].Username || got[i].Text != msgs[i].Text {
			t.Errorf("record %d = %+v, want %+v", i, got[i], msgs[i])
		}
	}
}

func TestAppendPreservesOrderAcrossBatches(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, time.Now())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	first := testMessages()
	second := []scrape.Message{{Username: "carol", Timestamp: "t3", Text: "hey"}}
	if err := w.Append(context.Background(), first); err != nil {
		t.Fatalf("Append first: %v", err)
	}
	if err := w.Append(context.Background(), second); err != nil {
		t.Fatalf("Append second: %v", err)
	}

	got, err := Read(w.Path())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var users []string
	for _, m := range got {
		users = append(users, m.Username)
	}
	if strings.Join(users, ",") != "alice,bob,carol" {
		t.Errorf("order = %v, want [alice bob carol]", users)
	}
}

func TestAppendEmptyBatchIsNoop(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, time.Now())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()
	if err := w.Append(context.Background(), nil); err != nil {
		t.Fatalf("Append(nil): %v", err)
	}
	info, err := os.Stat(w.Path())
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("file size = %d after empty append, want 0", info.Size())
	}
}

func TestAppendRespectsCancelledContext(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, time.Now())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Append(ctx, testMessages()); err == nil {
		t.Errorf("expected error from cancelled context")
	}
}
