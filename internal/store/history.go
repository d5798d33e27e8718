package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mirror-labs/mirror/backend/internal/model/chat"
)

// StorageError reports a failure of the durable history medium. When
// one is returned from a write, the caller must not assume the row was
// committed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("history store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// History persists conversation turns in SQLite. The log is append
// only: rows are never updated, deleted, or reordered, and the
// auto-increment id gives each session its exact conversation order.
type History struct {
	db *sql.DB
}

// Open connects to the SQLite database at path and ensures the schema.
func Open(path string) (*History, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &History{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT CHECK(role IN ('user','assistant')) NOT NULL,
			text TEXT NOT NULL,
			mood TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate messages table: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (h *History) Close() error {
	return h.db.Close()
}

// Append durably stores one turn and returns it with the assigned id
// and timestamp. An empty mood is stored as NULL.
func (h *History) Append(ctx context.Context, sessionID string, role chat.Role, text, mood string) (chat.Turn, error) {
	var moodVal any
	if mood != "" {
		moodVal = mood
	}
	createdAt := time.Now().UTC()

	res, err := h.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, text, mood, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, string(role), text, moodVal, createdAt,
	)
	if err != nil {
		return chat.Turn{}, storageErr("append", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return chat.Turn{}, storageErr("append", err)
	}

	return chat.Turn{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Text:      text,
		Mood:      mood,
		CreatedAt: createdAt,
	}, nil
}

// Recent returns the last limit turns of a session in chronological
// order, oldest first. A session with no turns yields an empty slice.
func (h *History) Recent(ctx context.Context, sessionID string, limit int) ([]chat.Turn, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, session_id, role, text, IFNULL(mood, ''), created_at
		 FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, storageErr("recent", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, storageErr("recent", err)
	}

	// Newest-first from the query, flip to conversation order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// TotalTurns counts every stored turn across all sessions.
func (h *History) TotalTurns(ctx context.Context) (int64, error) {
	var total int64
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&total); err != nil {
		return 0, storageErr("total", err)
	}
	return total, nil
}

// MoodCount is an aggregate bucket for the analytics surface.
type MoodCount struct {
	Mood  string `json:"mood"`
	Count int64  `json:"count"`
}

// MoodCounts groups turns by mood label, most frequent first, capped
// at ten buckets. Turns stored without a mood land in "unknown".
func (h *History) MoodCounts(ctx context.Context) ([]MoodCount, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT IFNULL(mood, 'unknown') AS mood, COUNT(*) AS count
		 FROM messages GROUP BY mood ORDER BY count DESC LIMIT 10`,
	)
	if err != nil {
		return nil, storageErr("mood counts", err)
	}
	defer rows.Close()

	counts := make([]MoodCount, 0, 10)
	for rows.Next() {
		var mc MoodCount
		if err := rows.Scan(&mc.Mood, &mc.Count); err != nil {
			return nil, storageErr("mood counts", err)
		}
		counts = append(counts, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("mood counts", err)
	}
	return counts, nil
}

// SessionActivity summarizes one session for the analytics surface.
type SessionActivity struct {
	SessionID  string    `json:"sessionId"`
	LastActive time.Time `json:"lastActive"`
	Turns      int64     `json:"turns"`
}

// ActiveSessions lists the ten most recently active sessions. Recency
// is decided by the highest stored id, the same key that orders turns.
func (h *History) ActiveSessions(ctx context.Context) ([]SessionActivity, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT m.session_id, m.created_at, s.turns
		 FROM messages m
		 JOIN (SELECT session_id, MAX(id) AS max_id, COUNT(*) AS turns
		       FROM messages GROUP BY session_id) s ON m.id = s.max_id
		 ORDER BY m.id DESC LIMIT 10`,
	)
	if err != nil {
		return nil, storageErr("active sessions", err)
	}
	defer rows.Close()

	sessions := make([]SessionActivity, 0, 10)
	for rows.Next() {
		var sa SessionActivity
		if err := rows.Scan(&sa.SessionID, &sa.LastActive, &sa.Turns); err != nil {
			return nil, storageErr("active sessions", err)
		}
		sessions = append(sessions, sa)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("active sessions", err)
	}
	return sessions, nil
}

// RecentTurns returns the newest limit turns across all sessions,
// newest first, for the analytics feed.
func (h *History) RecentTurns(ctx context.Context, limit int) ([]chat.Turn, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, session_id, role, text, IFNULL(mood, ''), created_at
		 FROM messages ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, storageErr("recent turns", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, storageErr("recent turns", err)
	}
	return turns, nil
}

func scanTurns(rows *sql.Rows) ([]chat.Turn, error) {
	turns := make([]chat.Turn, 0, 16)
	for rows.Next() {
		var turn chat.Turn
		var role string
		if err := rows.Scan(&turn.ID, &turn.SessionID, &role, &turn.Text, &turn.Mood, &turn.CreatedAt); err != nil {
			return nil, err
		}
		turn.Role = chat.Role(role)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return turns, nil
}
