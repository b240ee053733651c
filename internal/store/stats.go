package store

import (
	"context"
	"time"
)

// Stats computes the dashboard aggregate: totals, per-status counts, and
// per-day task creation counts over the trailing 7 days (UTC calendar
// dates, most recent first). No caching; every call hits the tables.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		StatusCounts:   make(map[TaskStatus]int),
		RecentActivity: []ActivityDay{},
	}

	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&stats.TotalTasks); err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&stats.TotalResults); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.StatusCounts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-7 * 24 * time.Hour).UnixMilli()
	actRows, err := s.DB.QueryContext(ctx,
		`SELECT date(created_at / 1000, 'unixepoch') AS day, COUNT(*)
		FROM tasks WHERE created_at >= ?
		GROUP BY day ORDER BY day DESC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer actRows.Close()
	for actRows.Next() {
		var day ActivityDay
		if err := actRows.Scan(&day.Date, &day.Count); err != nil {
			return nil, err
		}
		stats.RecentActivity = append(stats.RecentActivity, day)
	}
	return stats, actRows.Err()
}
