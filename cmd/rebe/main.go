// CLAUDE:SUMMARY Entry point for the re:be service — config, SQLite, Gemini + ElevenLabs clients, pipeline runner, chi HTTP server, optional MCP stdio.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/PascalJPan/re-be/audiogen"
	"github.com/PascalJPan/re-be/config"
	"github.com/PascalJPan/re-be/dbopen"
	"github.com/PascalJPan/re-be/llm"
	"github.com/PascalJPan/re-be/morph"
	"github.com/PascalJPan/re-be/pipeline"
	"github.com/PascalJPan/re-be/pipetrace"
	"github.com/PascalJPan/re-be/promptc"
	"github.com/PascalJPan/re-be/server"
	"github.com/PascalJPan/re-be/store"
)

func main() {
	mcpTransport := env("MCP_TRANSPORT", "")
	logLevel := env("LOG_LEVEL", "info")

	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// In stdio MCP mode stdout belongs to the protocol.
	logOut := os.Stdout
	if mcpTransport == "stdio" {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg := loadConfig()
	cfg.ApplyEnv()
	if cfg.LLM.APIKey == "" {
		slog.Error("GEMINI_API_KEY is required")
		os.Exit(1)
	}
	if cfg.Audio.APIKey == "" {
		slog.Error("ELEVENLABS_API_KEY is required")
		os.Exit(1)
	}

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll(), dbopen.WithSchema(store.Schema))
	if err != nil {
		slog.Error("open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	st := store.New(db)

	llmClient, err := llm.New(ctx, cfg.LLM, logger)
	if err != nil {
		slog.Error("gemini client", "error", err)
		os.Exit(1)
	}

	cfg.Audio.Logger = logger
	audio := audiogen.New(cfg.Audio)
	if err := os.MkdirAll(audio.Dir(), 0o755); err != nil {
		slog.Error("audio dir", "path", audio.Dir(), "error", err)
		os.Exit(1)
	}

	cfg.Morph.Logger = logger
	morpher := morph.New(llmClient, cfg.Morph)

	runner := &pipeline.Runner{
		Store:    st,
		Analyzer: llmClient,
		Intents:  llmClient,
		Enhancer: llmClient,
		Morpher:  morpher,
		Audio:    audio,
		Trace:    pipetrace.New(cfg.TraceDir),
		Logger:   logger,
	}

	api := server.New(cfg.Server, st, runner, audio, logger)

	// Optional MCP stdio transport exposing the deterministic tools.
	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "rebe",
			Version: "1.0.0",
		}, nil)
		promptc.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              api.Addr(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func loadConfig() *config.Config {
	path := env("CONFIG_FILE", "")
	if path == "" {
		return config.Default()
	}
	cfg, err := config.LoadConfigFile(path)
	if err != nil {
		slog.Error("load config", "path", path, "error", err)
		os.Exit(1)
	}
	return cfg
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
