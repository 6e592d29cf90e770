// CLAUDE:SUMMARY Post lifecycle: placeholder insert, atomic ready/failed transitions, feed and profile queries, recreate reset, delete.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/PascalJPan/re-be/dbopen"
)

// CreatePost inserts a placeholder row in status 'generating' and returns
// its creation time. The AI output columns stay at their defaults until the
// pipeline finishes.
func (s *Store) CreatePost(ctx context.Context, id string, userID int64, image []byte, points, colorHex string) (int64, error) {
	now := time.Now().UnixMilli()
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO posts (id, user_id, image_data, original_image_data,
		squiggle_points, color_hex, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, userID, image, image, points, colorHex, now,
	)
	if err != nil {
		return 0, fmt.Errorf("store: create post: %w", err)
	}
	return now, nil
}

// FinishPost flips a post to 'ready' with all pipeline outputs in a single
// UPDATE. The original upload is preserved alongside the final image so the
// post can be recreated later.
func (s *Store) FinishPost(ctx context.Context, res GenerationResult, originalImage []byte) error {
	_, err := dbopen.Exec(ctx, s.DB,
		`UPDATE posts SET
		image_data = ?, original_image_data = ?,
		structured_object = ?, image_analysis = ?, squiggle_features = ?,
		compiled_prompt = ?, enhancement_prompt = ?, audio_filename = ?,
		status = 'ready', error_message = NULL
		WHERE id = ?`,
		res.ImageData, originalImage,
		res.StructuredObject, res.ImageAnalysis, res.Features,
		res.CompiledPrompt, res.Enhancement, res.AudioFilename,
		res.ID,
	)
	return err
}

// FinishRecreate is FinishPost without touching original_image_data.
func (s *Store) FinishRecreate(ctx context.Context, res GenerationResult) error {
	_, err := dbopen.Exec(ctx, s.DB,
		`UPDATE posts SET
		image_data = ?,
		structured_object = ?, image_analysis = ?, squiggle_features = ?,
		compiled_prompt = ?, enhancement_prompt = ?, audio_filename = ?,
		status = 'ready', error_message = NULL
		WHERE id = ?`,
		res.ImageData,
		res.StructuredObject, res.ImageAnalysis, res.Features,
		res.CompiledPrompt, res.Enhancement, res.AudioFilename,
		res.ID,
	)
	return err
}

// FailPost marks a post 'failed' with the pipeline error.
func (s *Store) FailPost(ctx context.Context, id, msg string) error {
	_, err := dbopen.Exec(ctx, s.DB,
		`UPDATE posts SET status = 'failed', error_message = ? WHERE id = ?`, msg, id)
	return err
}

// PostStatus returns the post's status and error message.
func (s *Store) PostStatus(ctx context.Context, id string) (status, errMsg string, err error) {
	var em sql.NullString
	err = s.DB.QueryRowContext(ctx,
		`SELECT status, error_message FROM posts WHERE id = ?`, id,
	).Scan(&status, &em)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return status, em.String, err
}

// Feed returns one page of the global feed, newest first, with the total
// post count for pagination.
func (s *Store) Feed(ctx context.Context, page, perPage int) ([]PostSummary, int, error) {
	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT p.id, u.username, p.audio_filename, p.color_hex, p.created_at,
		(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count,
		p.status
		FROM posts p JOIN users u ON p.user_id = u.id
		ORDER BY p.created_at DESC, p.rowid DESC LIMIT ? OFFSET ?`,
		perPage, (page-1)*perPage,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	summaries, err := scanSummaries(rows)
	return summaries, total, err
}

// PostsByUser returns one page of a user's posts, newest first.
func (s *Store) PostsByUser(ctx context.Context, userID int64, username string, page, perPage int) ([]PostSummary, int, error) {
	var total int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT p.id, ?, p.audio_filename, p.color_hex, p.created_at,
		(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count,
		p.status
		FROM posts p WHERE p.user_id = ?
		ORDER BY p.created_at DESC, p.rowid DESC LIMIT ? OFFSET ?`,
		username, userID, perPage, (page-1)*perPage,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	summaries, err := scanSummaries(rows)
	return summaries, total, err
}

func scanSummaries(rows *sql.Rows) ([]PostSummary, error) {
	var out []PostSummary
	for rows.Next() {
		var p PostSummary
		if err := rows.Scan(&p.ID, &p.Username, &p.AudioFilename, &p.ColorHex,
			&p.CreatedAt, &p.CommentCount, &p.Status); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPost returns the full post row (minus image blobs).
func (s *Store) GetPost(ctx context.Context, id string) (*Post, error) {
	var p Post
	var em sql.NullString
	err := s.DB.QueryRowContext(ctx,
		`SELECT p.id, p.user_id, u.username, p.color_hex, p.squiggle_points,
		p.structured_object, p.image_analysis, p.squiggle_features,
		p.compiled_prompt, p.enhancement_prompt, p.audio_filename,
		p.status, p.error_message, p.created_at
		FROM posts p JOIN users u ON p.user_id = u.id
		WHERE p.id = ?`, id,
	).Scan(&p.ID, &p.UserID, &p.Username, &p.ColorHex, &p.SquigglePoints,
		&p.StructuredObject, &p.ImageAnalysis, &p.Features,
		&p.CompiledPrompt, &p.Enhancement, &p.AudioFilename,
		&p.Status, &em, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.ErrorMessage = em.String
	return &p, nil
}

// PostImage returns the post's current (possibly morphed) image bytes.
func (s *Store) PostImage(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT image_data FROM posts WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return data, err
}

// RecreateSource holds the stored inputs needed to re-run a post's pipeline.
type RecreateSource struct {
	UserID         int64
	OriginalImage  []byte
	SquigglePoints string
	ColorHex       string
	AudioFilename  string
	CreatedAt      int64
}

// GetRecreateSource returns a post's original inputs. Posts created before
// originals were retained fall back to the current image.
func (s *Store) GetRecreateSource(ctx context.Context, id string) (*RecreateSource, error) {
	var src RecreateSource
	var original, current []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT user_id, original_image_data, image_data, squiggle_points,
		color_hex, audio_filename, created_at
		FROM posts WHERE id = ?`, id,
	).Scan(&src.UserID, &original, &current, &src.SquigglePoints,
		&src.ColorHex, &src.AudioFilename, &src.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	src.OriginalImage = original
	if len(src.OriginalImage) == 0 {
		src.OriginalImage = current
	}
	return &src, nil
}

// ResetForRecreate deletes a post's comments and flips the post back to
// 'generating'. It returns the audio filenames of the removed comments so
// the caller can delete their files.
func (s *Store) ResetForRecreate(ctx context.Context, postID string) ([]string, error) {
	commentAudio, err := s.commentAudioFiles(ctx, postID)
	if err != nil {
		return nil, err
	}
	err = dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM comments WHERE post_id = ?`, postID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE posts SET status = 'generating', audio_filename = '', error_message = NULL
			WHERE id = ?`, postID)
		return err
	})
	return commentAudio, err
}

// DeletePost removes a post and its comments. It returns the audio filenames
// of all removed rows so the caller can delete their files.
func (s *Store) DeletePost(ctx context.Context, id string) ([]string, error) {
	var postAudio string
	err := s.DB.QueryRowContext(ctx,
		`SELECT audio_filename FROM posts WHERE id = ?`, id).Scan(&postAudio)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	audio, err := s.commentAudioFiles(ctx, id)
	if err != nil {
		return nil, err
	}
	if postAudio != "" {
		audio = append(audio, postAudio)
	}

	err = dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM comments WHERE post_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
		return err
	})
	return audio, err
}

func (s *Store) commentAudioFiles(ctx context.Context, postID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT audio_filename FROM comments WHERE post_id = ? AND audio_filename != ''`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ResetAll wipes every post, comment and user. Demo tooling only.
func (s *Store) ResetAll(ctx context.Context) error {
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM comments`,
			`DELETE FROM posts`,
			`DELETE FROM users`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
