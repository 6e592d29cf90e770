// CLAUDE:SUMMARY ElevenLabs audio synthesis client: routes ambient intents to sound-generation and music/hybrid to the music API, writes mp3 files.
//
// Package audiogen turns a compiled prompt into an mp3 on disk. Ambient
// intents go to the sound effects endpoint; music and hybrid intents go to
// the music endpoint with vocals forced off.
package audiogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PascalJPan/re-be/intent"
)

// Config configures the synthesis client.
type Config struct {
	// BaseURL of the ElevenLabs API. Default: "https://api.elevenlabs.io/v1".
	BaseURL string `yaml:"base_url"`

	// APIKey is sent as the xi-api-key header.
	APIKey string `yaml:"api_key"`

	// MusicModel handles music and hybrid intents. Default: "music_v1".
	MusicModel string `yaml:"music_model"`

	// SFXModel handles ambient intents. Default: "eleven_text_to_sound_v2".
	SFXModel string `yaml:"sfx_model"`

	// PromptInfluence steers the sound effects model toward the prompt
	// text, 0..1. Default: 0.85.
	PromptInfluence float64 `yaml:"prompt_influence"`

	// Dir is where mp3 files land. Default: "audio_files".
	Dir string `yaml:"dir"`

	// Timeout per synthesis request. Default: 120s; music generation is slow.
	Timeout time.Duration `yaml:"timeout"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.elevenlabs.io/v1"
	}
	if c.MusicModel == "" {
		c.MusicModel = "music_v1"
	}
	if c.SFXModel == "" {
		c.SFXModel = "eleven_text_to_sound_v2"
	}
	if c.PromptInfluence == 0 {
		c.PromptInfluence = 0.85
	}
	if c.Dir == "" {
		c.Dir = "audio_files"
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Generator synthesizes audio clips.
type Generator struct {
	cfg    Config
	client *http.Client
}

// New creates a Generator from config.
func New(cfg Config) *Generator {
	cfg.defaults()
	return &Generator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Dir returns the directory mp3 files are written to.
func (g *Generator) Dir() string { return g.cfg.Dir }

type sfxRequest struct {
	Text            string  `json:"text"`
	DurationSeconds int     `json:"duration_seconds"`
	ModelID         string  `json:"model_id"`
	PromptInfluence float64 `json:"prompt_influence"`
}

type musicRequest struct {
	Prompt            string `json:"prompt"`
	MusicLengthMS     int    `json:"music_length_ms"`
	ModelID           string `json:"model_id"`
	ForceInstrumental bool   `json:"force_instrumental"`
}

// Generate synthesizes audio for the compiled prompt and writes it to
// {id}.mp3 under the configured directory. It returns the filename.
func (g *Generator) Generate(ctx context.Context, id, prompt string, in *intent.Intent) (string, error) {
	if err := os.MkdirAll(g.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("audiogen: mkdir: %w", err)
	}

	var url string
	var payload any
	if in.AudioType == intent.TypeAmbient {
		url = strings.TrimRight(g.cfg.BaseURL, "/") + "/sound-generation"
		payload = sfxRequest{
			Text:            prompt,
			DurationSeconds: in.DurationSeconds,
			ModelID:         g.cfg.SFXModel,
			PromptInfluence: g.cfg.PromptInfluence,
		}
	} else {
		url = strings.TrimRight(g.cfg.BaseURL, "/") + "/music"
		payload = musicRequest{
			Prompt:            prompt,
			MusicLengthMS:     in.DurationSeconds * 1000,
			ModelID:           g.cfg.MusicModel,
			ForceInstrumental: true,
		}
	}

	audio, err := g.callAPI(ctx, url, payload)
	if err != nil {
		// One retry: synthesis endpoints shed load with transient 5xx.
		if ctx.Err() != nil {
			return "", err
		}
		g.cfg.Logger.Warn("synthesis failed, retrying once", "id", id, "error", err)
		audio, err = g.callAPI(ctx, url, payload)
		if err != nil {
			return "", err
		}
	}

	filename := id + ".mp3"
	if err := os.WriteFile(filepath.Join(g.cfg.Dir, filename), audio, 0o644); err != nil {
		return "", fmt.Errorf("audiogen: write %s: %w", filename, err)
	}
	g.cfg.Logger.Info("audio generated", "id", id, "bytes", len(audio), "type", in.AudioType)
	return filename, nil
}

func (g *Generator) callAPI(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("audiogen: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audiogen: POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("audiogen: HTTP %d from %s: %s", resp.StatusCode, url, string(respBody))
	}
	return io.ReadAll(resp.Body)
}

// Remove deletes a previously generated file if present. Missing files are
// not an error: generating posts never had one.
func (g *Generator) Remove(filename string) error {
	if filename == "" {
		return nil
	}
	err := os.Remove(filepath.Join(g.cfg.Dir, filename))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
