// Package chatlog persists scraped messages to an append-only JSONL session
// log, one file per run named by the run's start timestamp. Records are never
// rewritten: each append goes to the end of the file and is fsynced before
// returning, so a crash loses at most the messages not yet appended.
package chatlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/onnwee/chat-scribe/scrape"
)

const fileTimeLayout = "20060102_150405"

// Writer owns one session log file, kept open in append mode for the process
// lifetime.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// NewWriter creates LOG_DIR if needed and opens session_<start>.jsonl for
// appending.
func NewWriter(dir string, start time.Time) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("session_%s.jsonl", start.UTC().Format(fileTimeLayout)))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}
	return &Writer{f: f, path: path}, nil
}

// Path returns the session log's location on disk.
func (w *Writer) Path() string { return w.path }

// Append writes one JSON line per message and syncs the file. The batch is
// encoded up front so a marshal error cannot leave a partial record behind.
func (w *Writer) Append(ctx context.Context, msgs []scrape.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, m := range msgs {
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append session log: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("sync session log: %w", err)
	}
	return nil
}

// Close closes the underlying file. Append must not be called afterwards.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// Read loads every record from a session log file, in append order. Used by
// tests and by ad-hoc inspection tooling; the recorder itself never reads
// back what it wrote.
func Read(path string) ([]scrape.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []scrape.Message
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var m scrape.Message
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, fmt.Errorf("decode session log line: %w", err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
