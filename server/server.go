// CLAUDE:SUMMARY HTTP API: post/comment creation with background generation, feed, profiles, image/audio serving, reset.
//
// Package server exposes the REST API. Handlers validate inputs, write the
// placeholder row and hand the heavy lifting to a background pipeline run;
// clients poll the status endpoints until the row goes ready or failed.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/PascalJPan/re-be/idgen"
	"github.com/PascalJPan/re-be/intent"
	"github.com/PascalJPan/re-be/pipeline"
	"github.com/PascalJPan/re-be/store"
)

// Generator runs generation pipelines. Satisfied by *pipeline.Runner.
type Generator interface {
	RunPost(ctx context.Context, job pipeline.Job)
	RunRecreate(ctx context.Context, job pipeline.Job)
	RunComment(ctx context.Context, job pipeline.Job, parent *intent.Intent)
}

// AudioFiles is the slice of the audio generator the API needs: serving the
// directory and deleting files for removed posts. Satisfied by
// *audiogen.Generator.
type AudioFiles interface {
	Dir() string
	Remove(filename string) error
}

// Config holds the HTTP-facing settings.
type Config struct {
	Addr        string `yaml:"addr"`
	MaxImageMB  int    `yaml:"max_image_mb"`
	DefaultUser string `yaml:"default_user"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8000"
	}
	if c.MaxImageMB <= 0 {
		c.MaxImageMB = 10
	}
	if c.DefaultUser == "" {
		c.DefaultUser = "pascal"
	}
}

// Server holds the handlers' shared dependencies.
type Server struct {
	cfg    Config
	store  *store.Store
	runner Generator
	audio  AudioFiles
	logger *slog.Logger

	// launch starts a background pipeline run. Tests replace it to run
	// inline.
	launch func(fn func())
}

// New builds a Server. logger may be nil.
func New(cfg Config, st *store.Store, runner Generator, audio AudioFiles, logger *slog.Logger) *Server {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		store:  st,
		runner: runner,
		audio:  audio,
		logger: logger,
		launch: func(fn func()) { go fn() },
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.cfg.Addr }

// Handler builds the full router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsAllowAll)

	r.Get("/health", s.handleHealth)
	r.Handle("/api/audio/*", http.StripPrefix("/api/audio/",
		http.FileServer(http.Dir(s.audio.Dir()))))

	r.Group(func(r chi.Router) {
		r.Use(s.withUser)

		r.Post("/api/posts", s.handleCreatePost)
		r.Get("/api/posts", s.handleFeed)
		r.Get("/api/posts/{post_id}", s.handleGetPost)
		r.Get("/api/posts/{post_id}/status", s.handlePostStatus)
		r.Get("/api/posts/{post_id}/image", s.handlePostImage)
		r.Delete("/api/posts/{post_id}", s.handleDeletePost)
		r.Post("/api/posts/{post_id}/recreate", s.handleRecreatePost)

		r.Post("/api/posts/{post_id}/comments", s.handleCreateComment)
		r.Get("/api/posts/{post_id}/comments", s.handleListComments)
		r.Delete("/api/posts/{post_id}/comments/{comment_id}", s.handleDeleteComment)
		r.Get("/api/comments/{comment_id}/status", s.handleCommentStatus)

		r.Get("/api/users/{username}", s.handleProfile)
		r.Post("/api/reset", s.handleReset)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) maxImageBytes() int64 {
	return int64(s.cfg.MaxImageMB) * 1024 * 1024
}

// newID issues post and comment identifiers.
var newID = idgen.ShortUUID(12)

func renderTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
