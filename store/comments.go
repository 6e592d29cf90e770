// CLAUDE:SUMMARY Comment lifecycle: placeholder insert, ready/failed transitions, listing, parent intent lookup, delete.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/PascalJPan/re-be/dbopen"
)

// ParentObject returns a post's structured object JSON and status, for
// comment pipelines that derive from the parent.
func (s *Store) ParentObject(ctx context.Context, postID string) (object, status string, err error) {
	err = s.DB.QueryRowContext(ctx,
		`SELECT structured_object, status FROM posts WHERE id = ?`, postID,
	).Scan(&object, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return object, status, err
}

// CreateComment inserts a placeholder comment row in status 'generating'
// and returns its creation time.
func (s *Store) CreateComment(ctx context.Context, id, postID string, userID int64, image []byte, points, colorHex string) (int64, error) {
	now := time.Now().UnixMilli()
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO comments (id, post_id, user_id, image_data,
		squiggle_points, color_hex, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, postID, userID, image, points, colorHex, now,
	)
	if err != nil {
		return 0, fmt.Errorf("store: create comment: %w", err)
	}
	return now, nil
}

// FinishComment flips a comment to 'ready' with all pipeline outputs in a
// single UPDATE.
func (s *Store) FinishComment(ctx context.Context, res GenerationResult) error {
	_, err := dbopen.Exec(ctx, s.DB,
		`UPDATE comments SET
		structured_object = ?, image_analysis = ?, squiggle_features = ?,
		compiled_prompt = ?, audio_filename = ?,
		status = 'ready', error_message = NULL
		WHERE id = ?`,
		res.StructuredObject, res.ImageAnalysis, res.Features,
		res.CompiledPrompt, res.AudioFilename,
		res.ID,
	)
	return err
}

// FailComment marks a comment 'failed' with the pipeline error.
func (s *Store) FailComment(ctx context.Context, id, msg string) error {
	_, err := dbopen.Exec(ctx, s.DB,
		`UPDATE comments SET status = 'failed', error_message = ? WHERE id = ?`, msg, id)
	return err
}

// CommentStatus returns the comment's status and error message.
func (s *Store) CommentStatus(ctx context.Context, id string) (status, errMsg string, err error) {
	var em sql.NullString
	err = s.DB.QueryRowContext(ctx,
		`SELECT status, error_message FROM comments WHERE id = ?`, id,
	).Scan(&status, &em)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return status, em.String, err
}

// CommentsForPost returns all comments on a post, oldest first.
func (s *Store) CommentsForPost(ctx context.Context, postID string) ([]*Comment, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT c.id, c.post_id, c.user_id, u.username, c.color_hex,
		c.structured_object, c.image_analysis, c.squiggle_features,
		c.compiled_prompt, c.audio_filename, c.status, c.error_message, c.created_at
		FROM comments c JOIN users u ON c.user_id = u.id
		WHERE c.post_id = ?
		ORDER BY c.created_at ASC, c.rowid ASC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Comment
	for rows.Next() {
		var c Comment
		var em sql.NullString
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Username, &c.ColorHex,
			&c.StructuredObject, &c.ImageAnalysis, &c.Features,
			&c.CompiledPrompt, &c.AudioFilename, &c.Status, &em, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ErrorMessage = em.String
		out = append(out, &c)
	}
	return out, rows.Err()
}

// GetComment returns one comment scoped to its post.
func (s *Store) GetComment(ctx context.Context, postID, commentID string) (*Comment, error) {
	var c Comment
	var em sql.NullString
	err := s.DB.QueryRowContext(ctx,
		`SELECT c.id, c.post_id, c.user_id, u.username, c.color_hex,
		c.structured_object, c.image_analysis, c.squiggle_features,
		c.compiled_prompt, c.audio_filename, c.status, c.error_message, c.created_at
		FROM comments c JOIN users u ON c.user_id = u.id
		WHERE c.id = ? AND c.post_id = ?`, commentID, postID,
	).Scan(&c.ID, &c.PostID, &c.UserID, &c.Username, &c.ColorHex,
		&c.StructuredObject, &c.ImageAnalysis, &c.Features,
		&c.CompiledPrompt, &c.AudioFilename, &c.Status, &em, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.ErrorMessage = em.String
	return &c, nil
}

// DeleteComment removes one comment.
func (s *Store) DeleteComment(ctx context.Context, id string) error {
	_, err := dbopen.Exec(ctx, s.DB, `DELETE FROM comments WHERE id = ?`, id)
	return err
}

// PostExists reports whether the post row is present.
func (s *Store) PostExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
