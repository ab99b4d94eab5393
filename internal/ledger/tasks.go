package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gammazero/toposort"
)

// Put inserts or replaces a task keyed by ID (idempotent upsert).
//
// Dependencies may reference tasks not yet inserted: a planner batch is
// allowed to store tasks in any order, so existence is not checked here.
// What IS checked is that the task does not close a dependency cycle within
// its project's stored graph. A cyclic set would otherwise never become
// runnable and stall silently.
func (s *Store) Put(ctx context.Context, task *Task) error {
	return withRetry(ctx, func() error { return s.putOnce(ctx, task) })
}

func (s *Store) putOnce(ctx context.Context, task *Task) error {
	if err := s.checkCycle(ctx, task); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, kind, priority, payload, status, result, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			kind = excluded.kind,
			priority = excluded.priority,
			payload = excluded.payload,
			status = excluded.status,
			result = excluded.result,
			updated_at = CURRENT_TIMESTAMP
	`, task.ID, task.ProjectID, string(task.Kind), task.Priority,
		nullableJSON(task.Payload), string(task.Status), nullableJSON(task.Result))
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = ?`, task.ID)
	if err != nil {
		return fmt.Errorf("failed to delete old dependencies: %w", err)
	}

	for _, depID := range task.Dependencies {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_dependencies (task_id, depends_on_id)
			VALUES (?, ?)
		`, task.ID, depID)
		if err != nil {
			return fmt.Errorf("failed to insert dependency %s -> %s: %w", task.ID, depID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// checkCycle overlays the incoming task's edges onto the project's stored
// dependency graph and runs a topological sort. Unknown dependency IDs cannot
// participate in a cycle yet; the Put that later completes the cycle is the
// one that fails.
func (s *Store) checkCycle(ctx context.Context, task *Task) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.task_id, d.depends_on_id
		FROM task_dependencies d
		JOIN tasks t ON t.id = d.task_id
		WHERE t.project_id = ? AND d.task_id != ?
	`, task.ProjectID, task.ID)
	if err != nil {
		return fmt.Errorf("failed to query dependency graph: %w", err)
	}
	defer rows.Close()

	var edges []toposort.Edge
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return fmt.Errorf("failed to scan dependency edge: %w", err)
		}
		edges = append(edges, toposort.Edge{to, from})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating dependency edges: %w", err)
	}

	for _, depID := range task.Dependencies {
		if depID == task.ID {
			return fmt.Errorf("%w: task %q depends on itself", ErrDependencyCycle, task.ID)
		}
		edges = append(edges, toposort.Edge{depID, task.ID})
	}

	if len(edges) == 0 {
		return nil
	}
	if _, err := toposort.Toposort(edges); err != nil {
		return fmt.Errorf("%w: inserting task %q: %v", ErrDependencyCycle, task.ID, err)
	}
	return nil
}

// Get retrieves a task by ID, including its dependencies.
func (s *Store) Get(ctx context.Context, taskID string) (*Task, error) {
	task := &Task{}
	var kind, status string
	var payload, result sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, kind, priority, payload, status, result, created_at, updated_at
		FROM tasks
		WHERE id = ?
	`, taskID).Scan(&task.ID, &task.ProjectID, &kind, &task.Priority,
		&payload, &status, &result, &task.CreatedAt, &task.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}

	task.Kind = Kind(kind)
	task.Status = Status(status)
	if payload.Valid {
		task.Payload = json.RawMessage(payload.String)
	}
	if result.Valid {
		task.Result = json.RawMessage(result.String)
	}

	deps, err := s.loadDependencies(ctx, taskID)
	if err != nil {
		return nil, err
	}
	task.Dependencies = deps

	return task, nil
}

func (s *Store) loadDependencies(ctx context.Context, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT depends_on_id
		FROM task_dependencies
		WHERE task_id = ?
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	deps := []string{}
	for rows.Next() {
		var depID string
		if err := rows.Scan(&depID); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps = append(deps, depID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}
	return deps, nil
}

// List returns all tasks in a project (all projects when projectID is empty),
// ordered by priority then creation time.
func (s *Store) List(ctx context.Context, projectID string) ([]*Task, error) {
	query := `
		SELECT id, project_id, kind, priority, payload, status, result, created_at, updated_at
		FROM tasks`
	args := []any{}
	if projectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY priority, created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task := &Task{}
		var kind, status string
		var payload, result sql.NullString

		err := rows.Scan(&task.ID, &task.ProjectID, &kind, &task.Priority,
			&payload, &status, &result, &task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		task.Kind = Kind(kind)
		task.Status = Status(status)
		if payload.Valid {
			task.Payload = json.RawMessage(payload.String)
		}
		if result.Valid {
			task.Result = json.RawMessage(result.String)
		}

		deps, err := s.loadDependencies(ctx, task.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load dependencies for task %s: %w", task.ID, err)
		}
		task.Dependencies = deps

		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// ListRunnable returns pending tasks of the given kinds whose dependencies
// are all completed, filtered by project if projectID is non-empty.
//
// The completed set is computed as a fixed point over the whole stored task
// list before any pending task is checked, so a dependency whose row was
// inserted after its dependent is still recognized as satisfied in the same
// call: storage insertion order never affects runnability. Pending tasks do
// not unblock their dependents within one call; a dependent becomes runnable
// only after its dependency has actually completed and produced its result,
// which keeps concurrent dispatch of the returned set safe.
func (s *Store) ListRunnable(ctx context.Context, kinds []Kind, projectID string) ([]*Task, error) {
	all, err := s.List(ctx, projectID)
	if err != nil {
		return nil, err
	}

	completed := make(map[string]bool)
	for _, t := range all {
		if t.Status == StatusCompleted {
			completed[t.ID] = true
		}
	}

	wantKind := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		wantKind[k] = true
	}

	var runnable []*Task
	for _, t := range all {
		if t.Status != StatusPending {
			continue
		}
		if len(kinds) > 0 && !wantKind[t.Kind] {
			continue
		}
		satisfied := true
		for _, dep := range t.Dependencies {
			if !completed[dep] {
				satisfied = false
				break
			}
		}
		if satisfied {
			runnable = append(runnable, t)
		}
	}

	sort.SliceStable(runnable, func(i, j int) bool {
		return runnable[i].Priority < runnable[j].Priority
	})
	return runnable, nil
}

// Claim transitions a task pending -> in_progress. Returns false if the task
// is not currently pending (another worker won, or it already ran). Exactly
// one concurrent caller observes true because the status check and the write
// are one UPDATE statement.
func (s *Store) Claim(ctx context.Context, taskID string) (bool, error) {
	var claimed bool
	err := withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE tasks
			SET status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = ?
		`, string(StatusInProgress), taskID, string(StatusPending))
		if err != nil {
			return fmt.Errorf("failed to claim task: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		claimed = rows == 1
		return nil
	})
	return claimed, err
}

// SetStatus transitions a task from the status the caller observed to the
// next one, merging result fields into the stored result JSON. The transition
// is rejected with ErrStatusConflict if the stored status no longer matches.
func (s *Store) SetStatus(ctx context.Context, taskID string, observed, next Status, result map[string]any) error {
	return withRetry(ctx, func() error { return s.setStatusOnce(ctx, taskID, observed, next, result) })
}

func (s *Store) setStatusOnce(ctx context.Context, taskID string, observed, next Status, result map[string]any) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	var stored sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT status, result FROM tasks WHERE id = ?`, taskID).
		Scan(&status, &stored)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if err != nil {
		return fmt.Errorf("failed to query task status: %w", err)
	}
	if Status(status) != observed {
		return fmt.Errorf("%w: task %s is %s, caller observed %s", ErrStatusConflict, taskID, status, observed)
	}

	merged := map[string]any{}
	if stored.Valid && stored.String != "" {
		if err := json.Unmarshal([]byte(stored.String), &merged); err != nil {
			// Unreadable prior result is replaced, not fatal.
			merged = map[string]any{}
		}
	}
	for k, v := range result {
		merged[k] = v
	}

	var resultJSON any
	if len(merged) > 0 {
		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		resultJSON = string(data)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, result = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(next), resultJSON, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Expire marks a task expired regardless of its current status. Used by
// upstream cleanup; tasks are never deleted.
func (s *Store) Expire(ctx context.Context, taskID string) error {
	return withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
		`, string(StatusExpired), taskID)
		if err != nil {
			return fmt.Errorf("failed to expire task: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return nil
	})
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
