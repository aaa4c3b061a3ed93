package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// SaveRun upserts the full run state document.
func (s *SQLiteStore) SaveRun(ctx context.Context, rs *runstate.RunState) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	doc, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("failed to encode run %q: %w", rs.SessionID, err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (session_id, topic, status, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			topic = excluded.topic,
			status = excluded.status,
			document = excluded.document,
			updated_at = excluded.updated_at
	`, rs.SessionID, rs.Requirements.Topic, string(rs.Status), string(doc),
		formatTime(rs.CreatedAt), formatTime(rs.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save run %q: %w", rs.SessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRun loads a run state document. It returns an error wrapping
// ErrNotFound when the run does not exist.
func (s *SQLiteStore) GetRun(ctx context.Context, sessionID string) (*runstate.RunState, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM runs WHERE session_id = ?`, sessionID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %q: %w", sessionID, err)
	}

	var rs runstate.RunState
	if err := json.Unmarshal([]byte(doc), &rs); err != nil {
		return nil, fmt.Errorf("failed to decode run %q: %w", sessionID, err)
	}
	return &rs, nil
}

// ListRuns returns summaries of all runs, most recently updated first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, topic, status, created_at, updated_at
		FROM runs
		ORDER BY updated_at DESC, session_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var status, created, updated string
		if err := rows.Scan(&r.SessionID, &r.Topic, &status, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Status = runstate.Status(status)
		r.CreatedAt = parseTime(created)
		r.UpdatedAt = parseTime(updated)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return out, nil
}

// DeleteRun removes a run and its transcripts. Deleting a missing run
// returns an error wrapping ErrNotFound.
func (s *SQLiteStore) DeleteRun(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete run %q: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deletion of %q: %w", sessionID, err)
	}
	if n == 0 {
		return fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	return nil
}

// DeleteRunsBefore removes runs last updated before cutoff and returns
// their session ids. Runs for which keep returns true are left in place; a
// nil keep removes every expired run.
func (s *SQLiteStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time, keep func(sessionID string) bool) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT session_id FROM runs WHERE updated_at < ?`, formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to find expired runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		if keep != nil && keep(id) {
			continue
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired runs: %w", err)
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE session_id = ?`, id); err != nil {
			return nil, fmt.Errorf("failed to delete run %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ids, nil
}
