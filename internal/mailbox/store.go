// Package mailbox keeps a per-user FIFO of notification payloads. Posts
// arrive on the reply channel from the postprocessor; users read their
// queue over HTTP.
package mailbox

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/docloom/docloom/types"
)

const timeLayout = "2006-01-02 15:04:05"

// Message is one queued notification as the HTTP surface presents it.
type Message struct {
	Message       json.RawMessage `json:"message"`
	Timestamp     float64         `json:"timestamp"`
	FormattedTime string          `json:"formatted_time"`
}

// Store holds the queues in an in-memory SQLite database. Nothing persists
// across restarts.
type Store struct {
	db *sql.DB
}

func NewStore() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open mailbox database: %w", err)
	}
	// A :memory: database lives on its connection; a second connection
	// from the pool would see an empty schema.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init mailbox schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		timestamp REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append stores one copy of message per listed user, all stamped with the
// same delivery time. Returns the number of users written.
func (s *Store) Append(userList []string, message json.RawMessage) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare("INSERT INTO messages (user_id, message, timestamp) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("prepare append: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := types.UnixNow()
	for _, user := range userList {
		if _, err := stmt.Exec(user, string(message), now); err != nil {
			return 0, fmt.Errorf("append message for %s: %w", user, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return len(userList), nil
}

// Messages returns one user's queue in delivery order.
func (s *Store) Messages(userID string) ([]Message, error) {
	rows, err := s.db.Query(
		"SELECT message, timestamp FROM messages WHERE user_id = ? ORDER BY seq ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// Empty queues serialize as [], not null.
	msgs := []Message{}
	for rows.Next() {
		var raw string
		var ts float64
		if err := rows.Scan(&raw, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, Message{
			Message:       json.RawMessage(raw),
			Timestamp:     ts,
			FormattedTime: formatTimestamp(ts),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

func formatTimestamp(ts float64) string {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).Format(timeLayout)
}

func (s *Store) Close() error {
	return s.db.Close()
}
