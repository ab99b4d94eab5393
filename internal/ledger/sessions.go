package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TranscriptEntry is a single message in a generation session's transcript.
type TranscriptEntry struct {
	Role      string // "user", "assistant", or "observation"
	Content   string
	Timestamp time.Time
}

// ArtifactRecord is the crash-visible state of one produced artifact.
type ArtifactRecord struct {
	Role       string
	TargetPath string
	Round      int
	Valid      bool
}

// SaveSession stores session metadata for a generation task, updating the
// round count on conflict. Called after every round so a crashed worker
// leaves an inspectable trail.
func (s *Store) SaveSession(ctx context.Context, taskID, sessionID, provider string, roundCount int) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO generation_sessions (task_id, session_id, provider, round_count)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(task_id) DO UPDATE SET
				session_id = excluded.session_id,
				provider = excluded.provider,
				round_count = excluded.round_count,
				updated_at = CURRENT_TIMESTAMP
		`, taskID, sessionID, provider, roundCount)
		if err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

// GetSession retrieves session metadata for a task.
func (s *Store) GetSession(ctx context.Context, taskID string) (sessionID, provider string, roundCount int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT session_id, provider, round_count
		FROM generation_sessions
		WHERE task_id = ?
	`, taskID).Scan(&sessionID, &provider, &roundCount)

	if err == sql.ErrNoRows {
		return "", "", 0, fmt.Errorf("session not found for task %s: %w", taskID, ErrTaskNotFound)
	}
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to query session: %w", err)
	}
	return sessionID, provider, roundCount, nil
}

// AppendTranscript stores one transcript message for a task.
func (s *Store) AppendTranscript(ctx context.Context, taskID, role, content string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO session_transcript (task_id, role, content)
			VALUES (?, ?, ?)
		`, taskID, role, content)
		if err != nil {
			return fmt.Errorf("failed to append transcript: %w", err)
		}
		return nil
	})
}

// GetTranscript retrieves the full transcript for a task in order.
func (s *Store) GetTranscript(ctx context.Context, taskID string) ([]TranscriptEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, timestamp
		FROM session_transcript
		WHERE task_id = ?
		ORDER BY id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var entries []TranscriptEntry
	for rows.Next() {
		var e TranscriptEntry
		if err := rows.Scan(&e.Role, &e.Content, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transcript entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transcript: %w", err)
	}
	return entries, nil
}

// SaveArtifactRecord upserts the produced/validated state of one artifact
// role for a task.
func (s *Store) SaveArtifactRecord(ctx context.Context, taskID string, rec ArtifactRecord) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO session_artifacts (task_id, artifact_role, target_path, round, valid)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(task_id, artifact_role) DO UPDATE SET
				target_path = excluded.target_path,
				round = excluded.round,
				valid = excluded.valid,
				updated_at = CURRENT_TIMESTAMP
		`, taskID, rec.Role, rec.TargetPath, rec.Round, boolToInt(rec.Valid))
		if err != nil {
			return fmt.Errorf("failed to save artifact record: %w", err)
		}
		return nil
	})
}

// ListArtifactRecords returns all artifact records for a task.
func (s *Store) ListArtifactRecords(ctx context.Context, taskID string) ([]ArtifactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT artifact_role, target_path, round, valid
		FROM session_artifacts
		WHERE task_id = ?
		ORDER BY artifact_role
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifact records: %w", err)
	}
	defer rows.Close()

	var recs []ArtifactRecord
	for rows.Next() {
		var rec ArtifactRecord
		var valid int
		if err := rows.Scan(&rec.Role, &rec.TargetPath, &rec.Round, &valid); err != nil {
			return nil, fmt.Errorf("failed to scan artifact record: %w", err)
		}
		rec.Valid = valid != 0
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifact records: %w", err)
	}
	return recs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
