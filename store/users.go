// CLAUDE:SUMMARY User lookup with case-insensitive auto-create for header-based identities.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// defaultPassword hashes the shared demo credential assigned to auto-created
// accounts. Real password auth is not exposed yet; the hash keeps the column
// honest until it is.
const defaultPassword = "demo"

// ResolveUser looks up a user by username, creating the account on first
// sight. Usernames are case-insensitive.
func (s *Store) ResolveUser(ctx context.Context, username string) (*User, error) {
	u, err := s.GetUser(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("store: hash password: %w", err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, string(hash), time.Now().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	return s.GetUser(ctx, username)
}

// GetUser retrieves a user by username without creating it.
func (s *Store) GetUser(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM users WHERE username = ? COLLATE NOCASE`,
		username,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
