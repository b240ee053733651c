package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertTask adds a new task. Zero-valued fields get their defaults
// (status pending, created_at now, empty config object).
func (s *Store) InsertTask(ctx context.Context, t *Task) error {
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().UnixMilli()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.ConfigJSON == "" {
		t.ConfigJSON = "{}"
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO tasks (id, url, name, status, created_at, completed_at, config_json, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.URL, t.Name, t.Status, t.CreatedAt, t.CompletedAt, t.ConfigJSON, t.ErrorMessage,
	)
	return err
}

// GetTask retrieves a task by ID. Returns nil, nil when absent.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, url, name, status, created_at, completed_at, config_json, error_message
		FROM tasks WHERE id = ?`, id)
	return scanTask(row.Scan)
}

// ListTasks returns all tasks, newest first.
func (s *Store) ListTasks(ctx context.Context) ([]*Task, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, url, name, status, created_at, completed_at, config_json, error_message
		FROM tasks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus moves a task to a new lifecycle state. The WHERE guard
// makes terminal states sticky: once completed or failed, further updates
// are no-ops rather than errors, so a stray late writer cannot revert a
// finished task. completedAt nil leaves the column untouched.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status TaskStatus, completedAt *int64, errMsg string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = COALESCE(?, completed_at), error_message = ?
		WHERE id = ? AND status NOT IN (?, ?)`,
		status, completedAt, errMsg, id, StatusCompleted, StatusFailed,
	)
	return err
}

// DeleteTask removes a task together with its results and log entries in a
// single transaction. Deleting an unknown ID is not an error.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM results WHERE task_id = ?`,
		`DELETE FROM task_log WHERE task_id = ?`,
		`DELETE FROM tasks WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("cascade delete: %w", err)
		}
	}
	return tx.Commit()
}

func scanTask(scan func(...any) error) (*Task, error) {
	var t Task
	var completedAt sql.NullInt64
	err := scan(&t.ID, &t.URL, &t.Name, &t.Status, &t.CreatedAt, &completedAt,
		&t.ConfigJSON, &t.ErrorMessage)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Int64
	}
	return &t, nil
}
