package server

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/PascalJPan/re-be/kit"
	"github.com/PascalJPan/re-be/store"
)

var usernameRE = regexp.MustCompile(`^[a-z0-9_]{1,24}$`)

type userKey struct{}

// withUser resolves the caller from the X-Username header, creating the
// account on first sight. Missing or malformed headers fall back to the
// configured default user so the demo works without any auth setup.
func (s *Server) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Username")))
		if !usernameRE.MatchString(name) {
			name = s.cfg.DefaultUser
		}

		user, err := s.store.ResolveUser(r.Context(), name)
		if err != nil {
			s.logger.Error("failed to resolve user", "username", name, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, user)
		ctx = kit.WithUsername(ctx, user.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUser returns the user resolved by withUser. Panics if the
// middleware did not run; all authenticated routes are inside its group.
func currentUser(r *http.Request) *store.User {
	return r.Context().Value(userKey{}).(*store.User)
}

// corsAllowAll mirrors the permissive CORS policy of the demo deployment.
func corsAllowAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Username")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
