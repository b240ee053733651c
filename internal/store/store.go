// Package store provides the data access layer for scrapedash.
//
// One SQLite database holds the three tables (tasks, results, task_log).
// Every logical operation is a single statement except the cascade delete,
// which runs in one transaction so a fault mid-delete cannot leave orphaned
// results or log rows.
package store

import "database/sql"

// Store wraps the scrapedash database.
type Store struct {
	DB *sql.DB
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}
