// CLAUDE:SUMMARY Comment endpoints: create against a ready parent, list, status polling, delete.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/PascalJPan/re-be/intent"
	"github.com/PascalJPan/re-be/pipeline"
	"github.com/PascalJPan/re-be/store"
)

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "post_id")

	// The parent must be ready: the comment's audio inherits duration, BPM
	// and key from the parent's structured object.
	parentRaw, status, err := s.store.ParentObject(r.Context(), postID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load parent post", "id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if status != store.StatusReady {
		writeError(w, http.StatusConflict, "Post is still generating")
		return
	}

	var parent intent.Intent
	if err := json.Unmarshal([]byte(parentRaw), &parent); err != nil {
		s.logger.Error("corrupt parent structured object", "id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "Corrupt post data")
		return
	}

	up, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	user := currentUser(r)

	id := newID()
	createdAt, err := s.store.CreateComment(r.Context(), id, postID, user.ID, up.image, up.rawPoints, up.colorHex)
	if err != nil {
		s.logger.Error("failed to create comment", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	job := pipeline.Job{
		ID:       id,
		Image:    up.image,
		MIMEType: up.mimeType,
		Points:   up.points,
		ColorHex: up.colorHex,
		Username: user.Username,
	}
	s.launch(func() { s.runner.RunComment(context.Background(), job, &parent) })

	writeJSON(w, http.StatusOK, createResponse{
		ID:        id,
		PostID:    postID,
		Status:    store.StatusGenerating,
		ColorHex:  up.colorHex,
		CreatedAt: renderTime(createdAt),
	})
}

func commentToJSON(c *store.Comment) (commentJSON, error) {
	cj := commentJSON{
		ID:        c.ID,
		Username:  c.Username,
		ColorHex:  c.ColorHex,
		CreatedAt: renderTime(c.CreatedAt),
		Status:    c.Status,
	}
	// Generating/failed comments expose only identity and status.
	if c.Status != store.StatusReady {
		return cj, nil
	}

	var err error
	cj.AudioURL = audioURL(c.AudioFilename)
	cj.CompiledPrompt = c.CompiledPrompt
	if cj.StructuredObject, err = rawField(c.StructuredObject, "comment structured_object"); err != nil {
		return commentJSON{}, err
	}
	if cj.ImageAnalysis, err = rawField(c.ImageAnalysis, "comment image_analysis"); err != nil {
		return commentJSON{}, err
	}
	if cj.SquiggleFeatures, err = rawField(c.Features, "comment squiggle_features"); err != nil {
		return commentJSON{}, err
	}
	return cj, nil
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "post_id")
	exists, err := s.store.PostExists(r.Context(), postID)
	if err != nil {
		s.logger.Error("failed to check post", "id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}

	comments, err := s.store.CommentsForPost(r.Context(), postID)
	if err != nil {
		s.logger.Error("failed to load comments", "post", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]commentJSON, 0, len(comments))
	for _, c := range comments {
		cj, err := commentToJSON(c)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Corrupt comment data")
			return
		}
		out = append(out, cj)
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": out})
}

func (s *Server) handleCommentStatus(w http.ResponseWriter, r *http.Request) {
	commentID := chi.URLParam(r, "comment_id")
	status, errMsg, err := s.store.CommentStatus(r.Context(), commentID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load comment status", "id", commentID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":            commentID,
		"status":        status,
		"error_message": errMsg,
	})
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "post_id")
	commentID := chi.URLParam(r, "comment_id")

	c, err := s.store.GetComment(r.Context(), postID, commentID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load comment", "id", commentID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if c.UserID != currentUser(r).ID {
		writeError(w, http.StatusForbidden, "Not your comment")
		return
	}

	if err := s.store.DeleteComment(r.Context(), commentID); err != nil {
		s.logger.Error("failed to delete comment", "id", commentID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if c.AudioFilename != "" {
		if err := s.audio.Remove(c.AudioFilename); err != nil {
			s.logger.Warn("failed to remove audio file", "file", c.AudioFilename, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
