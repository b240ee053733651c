package store

import (
	"context"
	"fmt"
	"time"
)

// InsertResult stores one extraction result.
func (s *Store) InsertResult(ctx context.Context, r *Result) error {
	if r.ScrapedAt == 0 {
		r.ScrapedAt = time.Now().UnixMilli()
	}
	if r.LinksJSON == "" {
		r.LinksJSON = "[]"
	}
	if r.ImagesJSON == "" {
		r.ImagesJSON = "[]"
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO results (id, task_id, url, title, content, links_json, images_json, status_code, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TaskID, r.URL, r.Title, r.Content, r.LinksJSON, r.ImagesJSON, r.StatusCode, r.ScrapedAt,
	)
	return err
}

// ListResults returns results for a task, newest first.
func (s *Store) ListResults(ctx context.Context, taskID string) ([]*Result, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, task_id, url, title, content, links_json, images_json, status_code, scraped_at
		FROM results WHERE task_id = ?
		ORDER BY scraped_at DESC, id DESC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.TaskID, &r.URL, &r.Title, &r.Content,
			&r.LinksJSON, &r.ImagesJSON, &r.StatusCode, &r.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// CountResults returns the number of results stored for a task.
func (s *Store) CountResults(ctx context.Context, taskID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM results WHERE task_id = ?`, taskID).Scan(&n)
	return n, err
}
