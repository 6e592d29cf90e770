// CLAUDE:SUMMARY Post endpoints: create with background generation, feed, detail, status polling, image bytes, delete, recreate.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/PascalJPan/re-be/palette"
	"github.com/PascalJPan/re-be/pipeline"
	"github.com/PascalJPan/re-be/squiggle"
	"github.com/PascalJPan/re-be/store"
)

var pngMagic = []byte("\x89PNG")

// upload is a validated multipart submission shared by posts and comments.
type upload struct {
	image     []byte
	mimeType  string
	points    []squiggle.Point
	rawPoints string
	colorHex  string
}

// readUpload parses and validates the multipart form. On failure it writes
// the error response and returns false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (upload, bool) {
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Missing image upload")
		return upload{}, false
	}
	defer file.Close()

	maxBytes := s.maxImageBytes()
	image, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Unreadable image upload")
		return upload{}, false
	}
	if int64(len(image)) > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "Image too large")
		return upload{}, false
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	rawPoints := r.FormValue("squiggle_points")
	points, err := squiggle.ParsePoints([]byte(rawPoints))
	if errors.Is(err, squiggle.ErrInsufficientPoints) {
		writeError(w, http.StatusUnprocessableEntity, "Too few squiggle points (need at least 2)")
		return upload{}, false
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Invalid squiggle_points: %v", err))
		return upload{}, false
	}

	colorHex := r.FormValue("color_hex")
	if _, err := palette.Classify(colorHex); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid color_hex")
		return upload{}, false
	}

	return upload{
		image:     image,
		mimeType:  mimeType,
		points:    points,
		rawPoints: rawPoints,
		colorHex:  colorHex,
	}, true
}

// createResponse is returned by the async create/recreate endpoints.
type createResponse struct {
	ID        string `json:"id"`
	PostID    string `json:"post_id,omitempty"`
	Status    string `json:"status"`
	ColorHex  string `json:"color_hex"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	user := currentUser(r)

	id := newID()
	createdAt, err := s.store.CreatePost(r.Context(), id, user.ID, up.image, up.rawPoints, up.colorHex)
	if err != nil {
		s.logger.Error("failed to create post", "error", err)
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
	s.launch(func() { s.runner.RunPost(context.Background(), job) })

	writeJSON(w, http.StatusOK, createResponse{
		ID:        id,
		Status:    store.StatusGenerating,
		ColorHex:  up.colorHex,
		CreatedAt: renderTime(createdAt),
	})
}

// postSummaryJSON is the feed/profile projection on the wire.
type postSummaryJSON struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	ImageURL     string `json:"image_url"`
	AudioURL     string `json:"audio_url"`
	ColorHex     string `json:"color_hex"`
	CreatedAt    string `json:"created_at"`
	CommentCount int    `json:"comment_count"`
	Status       string `json:"status"`
}

func summaryJSON(p store.PostSummary) postSummaryJSON {
	return postSummaryJSON{
		ID:           p.ID,
		Username:     p.Username,
		ImageURL:     "api/posts/" + p.ID + "/image",
		AudioURL:     audioURL(p.AudioFilename),
		ColorHex:     p.ColorHex,
		CreatedAt:    renderTime(p.CreatedAt),
		CommentCount: p.CommentCount,
		Status:       p.Status,
	}
}

func audioURL(filename string) string {
	if filename == "" {
		return ""
	}
	return "api/audio/" + filename
}

// parsePagination applies the page>=1, 1<=per_page<=100 bounds.
func parsePagination(r *http.Request) (page, perPage int, err error) {
	page, perPage = 1, 20
	if v := r.URL.Query().Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			return 0, 0, errors.New("page must be an integer >= 1")
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		perPage, err = strconv.Atoi(v)
		if err != nil || perPage < 1 || perPage > 100 {
			return 0, 0, errors.New("per_page must be an integer in [1, 100]")
		}
	}
	return page, perPage, nil
}

func pageCount(total, perPage int) int {
	pages := int(math.Ceil(float64(total) / float64(perPage)))
	if pages < 1 {
		pages = 1
	}
	return pages
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	summaries, total, err := s.store.Feed(r.Context(), page, perPage)
	if err != nil {
		s.logger.Error("failed to load feed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	posts := make([]postSummaryJSON, 0, len(summaries))
	for _, p := range summaries {
		posts = append(posts, summaryJSON(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"posts": posts,
		"total": total,
		"page":  page,
		"pages": pageCount(total, perPage),
	})
}

// commentJSON is one comment in detail/list responses. Structured fields are
// passed through as stored JSON; placeholders hold '{}' until generation
// finishes.
type commentJSON struct {
	ID               string          `json:"id"`
	Username         string          `json:"username"`
	AudioURL         string          `json:"audio_url"`
	ColorHex         string          `json:"color_hex"`
	StructuredObject json.RawMessage `json:"structured_object"`
	ImageAnalysis    json.RawMessage `json:"image_analysis"`
	SquiggleFeatures json.RawMessage `json:"squiggle_features"`
	CompiledPrompt   string          `json:"compiled_prompt"`
	CreatedAt        string          `json:"created_at"`
	Status           string          `json:"status"`
}

type postDetailJSON struct {
	ID               string          `json:"id"`
	Username         string          `json:"username"`
	ImageURL         string          `json:"image_url"`
	AudioURL         string          `json:"audio_url"`
	ColorHex         string          `json:"color_hex"`
	StructuredObject json.RawMessage `json:"structured_object"`
	ImageAnalysis    json.RawMessage `json:"image_analysis"`
	SquiggleFeatures json.RawMessage `json:"squiggle_features"`
	CompiledPrompt   string          `json:"compiled_prompt"`
	Enhancement      json.RawMessage `json:"enhancement_prompt"`
	Comments         []commentJSON   `json:"comments"`
	CreatedAt        string          `json:"created_at"`
	Status           string          `json:"status"`
}

// rawField validates a stored JSON column before echoing it to clients.
func rawField(raw, label string) (json.RawMessage, error) {
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("corrupt %s data", label)
	}
	return json.RawMessage(raw), nil
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "post_id")
	p, err := s.store.GetPost(r.Context(), postID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load post", "id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	detail := postDetailJSON{
		ID:        p.ID,
		Username:  p.Username,
		ImageURL:  "api/posts/" + p.ID + "/image",
		ColorHex:  p.ColorHex,
		Comments:  []commentJSON{},
		CreatedAt: renderTime(p.CreatedAt),
		Status:    p.Status,
	}

	// Generating/failed posts expose only identity and status.
	if p.Status != store.StatusReady {
		writeJSON(w, http.StatusOK, detail)
		return
	}

	var fieldErr error
	detail.AudioURL = audioURL(p.AudioFilename)
	detail.CompiledPrompt = p.CompiledPrompt
	if detail.StructuredObject, fieldErr = rawField(p.StructuredObject, "post structured_object"); fieldErr == nil {
		if detail.ImageAnalysis, fieldErr = rawField(p.ImageAnalysis, "post image_analysis"); fieldErr == nil {
			detail.SquiggleFeatures, fieldErr = rawField(p.Features, "post squiggle_features")
		}
	}
	if fieldErr != nil {
		writeError(w, http.StatusInternalServerError, "Corrupt post data")
		return
	}
	// A missing or unparseable enhancement degrades to null rather than
	// failing the whole response.
	if p.Enhancement != "" && json.Valid([]byte(p.Enhancement)) {
		detail.Enhancement = json.RawMessage(p.Enhancement)
	}

	comments, err := s.store.CommentsForPost(r.Context(), postID)
	if err != nil {
		s.logger.Error("failed to load comments", "post", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	for _, c := range comments {
		cj, err := commentToJSON(c)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Corrupt comment data")
			return
		}
		detail.Comments = append(detail.Comments, cj)
	}

	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handlePostStatus(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "post_id")
	status, errMsg, err := s.store.PostStatus(r.Context(), postID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load post status", "id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":            postID,
		"status":        status,
		"error_message": errMsg,
	})
}

func (s *Server) handlePostImage(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "post_id")
	data, err := s.store.PostImage(r.Context(), postID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load post image", "id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusNotFound, "Image not yet available")
		return
	}

	w.Header().Set("Content-Type", imageContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// imageContentType sniffs PNG by magic bytes; everything else is served as
// JPEG, matching what uploads accept in practice.
func imageContentType(data []byte) string {
	if bytes.HasPrefix(data, pngMagic) {
		return "image/png"
	}
	return "image/jpeg"
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "post_id")
	p, err := s.store.GetPost(r.Context(), postID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load post", "id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if p.UserID != currentUser(r).ID {
		writeError(w, http.StatusForbidden, "Not your post")
		return
	}

	audioFiles, err := s.store.DeletePost(r.Context(), postID)
	if err != nil {
		s.logger.Error("failed to delete post", "id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.removeAudioFiles(audioFiles)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRecreatePost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "post_id")
	src, err := s.store.GetRecreateSource(r.Context(), postID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load post", "id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	user := currentUser(r)
	if src.UserID != user.ID {
		writeError(w, http.StatusForbidden, "Not your post")
		return
	}

	var points []squiggle.Point
	if err := json.Unmarshal([]byte(src.SquigglePoints), &points); err != nil {
		s.logger.Error("corrupt stored squiggle points", "id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "Corrupt post data")
		return
	}

	// The old audio and every comment go away now: comments were musically
	// bound to audio that is about to be replaced.
	if src.AudioFilename != "" {
		if err := s.audio.Remove(src.AudioFilename); err != nil {
			s.logger.Warn("failed to remove audio file", "file", src.AudioFilename, "error", err)
		}
	}
	commentAudio, err := s.store.ResetForRecreate(r.Context(), postID)
	if err != nil {
		s.logger.Error("failed to reset post", "id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.removeAudioFiles(commentAudio)

	job := pipeline.Job{
		ID:       postID,
		Image:    src.OriginalImage,
		MIMEType: imageContentType(src.OriginalImage),
		Points:   points,
		ColorHex: src.ColorHex,
		Username: user.Username,
	}
	s.launch(func() { s.runner.RunRecreate(context.Background(), job) })

	writeJSON(w, http.StatusOK, createResponse{
		ID:        postID,
		Status:    store.StatusGenerating,
		ColorHex:  src.ColorHex,
		CreatedAt: renderTime(src.CreatedAt),
	})
}

func (s *Server) removeAudioFiles(filenames []string) {
	for _, f := range filenames {
		if f == "" {
			continue
		}
		if err := s.audio.Remove(f); err != nil {
			s.logger.Warn("failed to remove audio file", "file", f, "error", err)
		}
	}
}
