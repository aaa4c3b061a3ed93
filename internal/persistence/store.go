// Package persistence stores run state documents and model transcripts in
// SQLite.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

const opTimeout = 5 * time.Second

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	SessionID string          `json:"session_id"`
	Topic     string          `json:"topic"`
	Status    runstate.Status `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TranscriptEntry is one recorded prompt or reply.
type TranscriptEntry struct {
	Role      string    `json:"role"`
	Direction string    `json:"direction"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists run state snapshots and transcripts.
type Store interface {
	SaveRun(ctx context.Context, s *runstate.RunState) error
	GetRun(ctx context.Context, sessionID string) (*runstate.RunState, error)
	ListRuns(ctx context.Context) ([]RunSummary, error)
	DeleteRun(ctx context.Context, sessionID string) error
	DeleteRunsBefore(ctx context.Context, cutoff time.Time, keep func(sessionID string) bool) ([]string, error)

	SaveMessage(ctx context.Context, sessionID, role, direction, content string) error
	GetHistory(ctx context.Context, sessionID string) ([]TranscriptEntry, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath with WAL
// journaling, a busy timeout, and foreign keys enabled.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}
	return open(ctx, fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath))
}

// NewMemoryStore creates a private in-memory store. Each call gets its own
// database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	return open(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
}

func open(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc.org/sqlite ignores _foreign_keys in the DSN.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	// A single connection keeps the pragma and the shared in-memory
	// database consistent.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
