// Package store is the data access layer for posts, comments and users.
//
// Each post and comment row carries the full generation record: the uploaded
// image, the gesture and color inputs, and the AI outputs as JSON columns.
// Rows are inserted as placeholders in status 'generating' and flipped to
// 'ready' or 'failed' in a single UPDATE when the pipeline finishes, so
// readers never observe a half-written result.
package store

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Row statuses of the generation state machine.
const (
	StatusGenerating = "generating"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// Store wraps the application database.
type Store struct {
	DB *sql.DB
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}
