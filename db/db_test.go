package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/chat-scribe/db"
	"github.com/onnwee/chat-scribe/scrape"
	"github.com/onnwee/chat-scribe/testutil"
)

func TestMigrateIdempotent(t *testing.T) {
	database := testutil.SetupTestDB(t)
	// A second run over an already migrated schema must be a no-op.
	if err := db.Migrate(context.Background(), database); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
}

func TestInsertMessagesDedupesOnMsgID(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()
	room := "general"

	batch := []scrape.Message{
		{Username: "alice", Timestamp: "10:00 AM", Text: "hello", ScrapedAt: time.Now().UTC()},
		{Username: "bob", Timestamp: "10:01 AM", Text: "hi", ScrapedAt: time.Now().UTC()},
	}
	if err := db.InsertMessages(ctx, database, room, batch); err != nil {
		t.Fatalf("InsertMessages: %v", err)
	}
	before, err := db.CountMessages(ctx, database, room)
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}

	// Re-inserting the same batch simulates a process restart with an empty
	// in-memory seen set. The unique msg_id must absorb the duplicates.
	if err := db.InsertMessages(ctx, database, room, batch); err != nil {
		t.Fatalf("re-insert: %v", err)
	}
	after, err := db.CountMessages(ctx, database, room)
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if after != before {
		t.Errorf("row count changed %d -> %d on duplicate insert", before, after)
	}
}

func TestListMessagesPagination(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()
	room := "pagination-test"

	var batch []scrape.Message
	for _, u := range []string{"a", "b", "c"} {
		batch = append(batch, scrape.Message{Username: u, Timestamp: "t-" + u, Text: "msg " + u, ScrapedAt: time.Now().UTC()})
	}
	if err := db.InsertMessages(ctx, database, room, batch); err != nil {
		t.Fatalf("InsertMessages: %v", err)
	}

	page1, err := db.ListMessages(ctx, database, room, 0, 2)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("page1 has %d rows, want 2", len(page1))
	}
	page2, err := db.ListMessages(ctx, database, room, page1[len(page1)-1].ID, 2)
	if err != nil {
		t.Fatalf("ListMessages page2: %v", err)
	}
	if len(page2) != 1 || page2[0].Username != "c" {
		t.Errorf("page2 = %+v, want the single remaining row from user c", page2)
	}
}

func TestSessionCookiesRoundTrip(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	snapshot := `[{"name":"sid","value":"xyz","domain":"chat.example.com"}]`
	if err := db.SaveSessionCookies(ctx, database, snapshot); err != nil {
		t.Fatalf("SaveSessionCookies: %v", err)
	}
	got, err := db.LoadSessionCookies(ctx, database)
	if err != nil {
		t.Fatalf("LoadSessionCookies: %v", err)
	}
	if got != snapshot {
		t.Errorf("round trip = %q, want %q", got, snapshot)
	}
}

func TestLoadSessionCookiesEmptyWhenUnset(t *testing.T) {
	database := testutil.SetupTestDB(t)
	if _, err := database.Exec(`DELETE FROM kv WHERE key LIKE 'session_cookies%'`); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	got, err := db.LoadSessionCookies(context.Background(), database)
	if err != nil {
		t.Fatalf("LoadSessionCookies: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty string before any save", got)
	}
}
