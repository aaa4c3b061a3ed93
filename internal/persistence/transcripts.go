package persistence

import (
	"context"
	"fmt"
	"time"
)

// SaveMessage appends a transcript entry for a run.
func (s *SQLiteStore) SaveMessage(ctx context.Context, sessionID, role, direction, content string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (session_id, role, direction, content, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, role, direction, content, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save transcript for %q: %w", sessionID, err)
	}
	return nil
}

// GetHistory returns a run's transcript in insertion order.
func (s *SQLiteStore) GetHistory(ctx context.Context, sessionID string) ([]TranscriptEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, direction, content, timestamp
		FROM transcripts
		WHERE session_id = ?
		ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var out []TranscriptEntry
	for rows.Next() {
		var e TranscriptEntry
		var ts string
		if err := rows.Scan(&e.Role, &e.Direction, &e.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan transcript entry: %w", err)
		}
		e.Timestamp = parseTime(ts)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transcript: %w", err)
	}
	return out, nil
}
