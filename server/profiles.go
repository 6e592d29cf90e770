// CLAUDE:SUMMARY Profile lookup and the demo reset endpoint.
package server

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/PascalJPan/re-be/store"
)

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	// Profiles never auto-create: an unknown name is a 404, unlike the
	// X-Username header path.
	user, err := s.store.GetUser(r.Context(), username)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load user", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	page, perPage, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	summaries, total, err := s.store.PostsByUser(r.Context(), user.ID, user.Username, page, perPage)
	if err != nil {
		s.logger.Error("failed to load user posts", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	posts := make([]postSummaryJSON, 0, len(summaries))
	for _, p := range summaries {
		posts = append(posts, summaryJSON(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  map[string]any{"id": user.ID, "username": user.Username},
		"posts": posts,
		"total": total,
		"page":  page,
		"pages": pageCount(total, perPage),
	})
}

// handleReset wipes all rows and generated audio. Demo convenience only.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ResetAll(r.Context()); err != nil {
		s.logger.Error("failed to reset database", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	files, err := filepath.Glob(filepath.Join(s.audio.Dir(), "*.mp3"))
	if err == nil {
		for _, f := range files {
			if err := s.audio.Remove(filepath.Base(f)); err != nil {
				s.logger.Warn("failed to remove audio file", "file", f, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
