package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		session_id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		status TEXT NOT NULL,
		document TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_updated_at ON runs(updated_at);

	CREATE TABLE IF NOT EXISTS transcripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		direction TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		FOREIGN KEY (session_id) REFERENCES runs(session_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_transcripts_session
		ON transcripts(session_id, id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
