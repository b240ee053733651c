package store

import (
	"context"
	"fmt"
	"time"
)

// AppendLog records one task event. Append-only; entries are never mutated.
func (s *Store) AppendLog(ctx context.Context, taskID string, level LogLevel, message string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO task_log (task_id, level, message, logged_at) VALUES (?, ?, ?, ?)`,
		taskID, level, message, time.Now().UnixMilli(),
	)
	return err
}

// ListLogs returns log entries for a task, newest first.
func (s *Store) ListLogs(ctx context.Context, taskID string) ([]*LogEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, task_id, level, message, logged_at
		FROM task_log WHERE task_id = ?
		ORDER BY logged_at DESC, id DESC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Level, &e.Message, &e.LoggedAt); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
