package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/onnwee/chat-scribe/scrape"
)

// StoredMessage is an archived chat message row as served by the HTTP API.
type StoredMessage struct {
	ID        int64     `json:"id"`
	Room      string    `json:"room"`
	MsgID     string    `json:"msg_id"`
	Username  string    `json:"username"`
	Timestamp string    `json:"timestamp"`
	Message   string    `json:"message"`
	IsReply   bool      `json:"is_reply"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// InsertMessages archives a batch. The msg_id UNIQUE constraint plus ON
// CONFLICT DO NOTHING makes re-inserting an already archived message a no-op,
// so the archive stays duplicate-free across process restarts even though the
// in-memory seen set does not survive them.
func InsertMessages(ctx context.Context, dbx *sql.DB, room string, msgs []scrape.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := dbx.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chat_messages(room, msg_id, username, msg_timestamp, message, is_reply, reply_to, scraped_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT(msg_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		if _, err := stmt.ExecContext(ctx, room, m.ID(), m.Username, m.Timestamp, m.Text, m.IsReply, m.ReplyTo, m.ScrapedAt); err != nil {
			return fmt.Errorf("insert message %s: %w", m.ID(), err)
		}
	}
	return tx.Commit()
}

// ListMessages returns archived messages for a room in insertion order,
// starting after afterID, up to limit rows. afterID=0 starts from the
// beginning. Used by both the JSON listing and the SSE replay.
func ListMessages(ctx context.Context, dbx *sql.DB, room string, afterID int64, limit int) ([]StoredMessage, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	rows, err := dbx.QueryContext(ctx,
		`SELECT id, room, msg_id, COALESCE(username,''), COALESCE(msg_timestamp,''), COALESCE(message,''),
		        COALESCE(is_reply,false), COALESCE(reply_to,''), COALESCE(scraped_at, created_at)
		 FROM chat_messages
		 WHERE room = $1 AND id > $2
		 ORDER BY id ASC
		 LIMIT $3`, room, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		if err := rows.Scan(&m.ID, &m.Room, &m.MsgID, &m.Username, &m.Timestamp, &m.Message, &m.IsReply, &m.ReplyTo, &m.ScrapedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMessages returns the number of archived messages for a room.
func CountMessages(ctx context.Context, dbx *sql.DB, room string) (int64, error) {
	var n int64
	err := dbx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_messages WHERE room = $1`, room).Scan(&n)
	return n, err
}

// ArchiveSink adapts the archive to the scrape loop's secondary sink slot.
type ArchiveSink struct {
	DB   *sql.DB
	Room string
}

func (a *ArchiveSink) Append(ctx context.Context, msgs []scrape.Message) error {
	return InsertMessages(ctx, a.DB, a.Room, msgs)
}
