// CLAUDE:SUMMARY Gemini wrapper for the three model calls: synesthetic image analysis, audio intent generation, enhancement prompt, plus image editing.
//
// Package llm wraps the genai client behind the four model operations the
// generation pipeline needs. Every JSON-producing call parses and validates
// before returning; a malformed response is retried once and then surfaces
// as ErrBadResponse.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	genai "google.golang.org/genai"

	"github.com/PascalJPan/re-be/intent"
	"github.com/PascalJPan/re-be/palette"
	"github.com/PascalJPan/re-be/squiggle"
)

// ErrBadResponse is returned when the model's output cannot be parsed or
// validated after retrying.
var ErrBadResponse = errors.New("llm: malformed model response")

// Config selects the models for each call. Zero-value fields take defaults.
type Config struct {
	APIKey string `yaml:"api_key"`
	// AnalysisModel handles image analysis and enhancement prompts.
	AnalysisModel string `yaml:"analysis_model"`
	// IntentModel handles structured audio intent generation.
	IntentModel string `yaml:"intent_model"`
	// ImageModel handles image editing for the morph branch.
	ImageModel string `yaml:"image_model"`
}

func (c *Config) defaults() {
	if c.AnalysisModel == "" {
		c.AnalysisModel = "gemini-2.5-flash"
	}
	if c.IntentModel == "" {
		c.IntentModel = "gemini-2.5-flash-lite"
	}
	if c.ImageModel == "" {
		c.ImageModel = "gemini-2.5-flash-image-preview"
	}
}

// Client is a thin wrapper around the official genai client.
type Client struct {
	cli    *genai.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a Client. The API key may also come from the environment the
// genai client reads.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: client: %w", err)
	}
	return &Client{cli: cli, cfg: cfg, logger: logger}, nil
}

// generateJSON sends the parts to the given model requesting JSON output and
// returns the raw text of the first candidate part.
func (c *Client) generateJSON(ctx context.Context, model string, temperature float32, parts []*genai.Part) ([]byte, error) {
	resp, err := c.cli.Models.GenerateContent(ctx, model,
		[]*genai.Content{{Parts: parts}},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr(temperature),
		},
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrBadResponse
	}
	return []byte(resp.Candidates[0].Content.Parts[0].Text), nil
}

// AnalyzeImage runs the synesthetic vision analysis on an uploaded image.
func (c *Client) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*intent.ImageAnalysis, error) {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
	default:
		mimeType = "image/jpeg"
	}
	parts := []*genai.Part{
		{Text: analysisPrompt},
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
	}

	var analysis intent.ImageAnalysis
	err := retryOnce(ctx, func() error {
		raw, err := c.generateJSON(ctx, c.cfg.AnalysisModel, 0.4, parts)
		if err != nil {
			return err
		}
		return decodeAnalysis(raw, &analysis)
	})
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// GenerateIntent produces the structured audio intent. When parent is
// non-nil the call runs in comment mode: the addendum is appended and the
// result inherits the parent's duration, bpm and key.
func (c *Client) GenerateIntent(ctx context.Context, analysis *intent.ImageAnalysis, color palette.Color, feats squiggle.Features, parent *intent.Intent) (*intent.Intent, error) {
	prompt := intentPrompt
	input := map[string]any{
		"image_analysis":    analysis,
		"color":             color,
		"squiggle_features": feats,
	}
	if parent != nil {
		prompt += commentAddendum
		input["parent_audio_object"] = parent
	}
	parts, err := promptParts(prompt, input)
	if err != nil {
		return nil, err
	}

	var out intent.Intent
	err = retryOnce(ctx, func() error {
		raw, err := c.generateJSON(ctx, c.cfg.IntentModel, 0.6, parts)
		if err != nil {
			return err
		}
		return decodeIntent(raw, parent, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateEnhancement produces the morph branch's image editing prompt.
func (c *Client) GenerateEnhancement(ctx context.Context, analysis *intent.ImageAnalysis, color palette.Color, feats squiggle.Features) (*intent.Enhancement, error) {
	parts, err := promptParts(enhancementPrompt, map[string]any{
		"image_analysis":    analysis,
		"color":             color,
		"squiggle_features": feats,
	})
	if err != nil {
		return nil, err
	}

	var enh intent.Enhancement
	err = retryOnce(ctx, func() error {
		raw, err := c.generateJSON(ctx, c.cfg.AnalysisModel, 0.4, parts)
		if err != nil {
			return err
		}
		return decodeEnhancement(raw, &enh)
	})
	if err != nil {
		return nil, err
	}
	return &enh, nil
}

// EditImage applies the morphing prompt to the composited image and returns
// the edited image bytes.
func (c *Client) EditImage(ctx context.Context, image []byte, prompt string) ([]byte, error) {
	resp, err := c.cli.Models.GenerateContent(ctx, c.cfg.ImageModel,
		[]*genai.Content{{Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: image}},
		}}},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrBadResponse
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
	}
	return nil, fmt.Errorf("%w: no image part in edit response", ErrBadResponse)
}

func promptParts(prompt string, input map[string]any) ([]*genai.Part, error) {
	in, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal input: %w", err)
	}
	return []*genai.Part{{Text: prompt + "\n\n[INPUT JSON]\n" + string(in)}}, nil
}

func decodeAnalysis(raw []byte, out *intent.ImageAnalysis) error {
	var a intent.ImageAnalysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	*out = a
	return nil
}

// decodeIntent parses and validates a model intent. In comment mode the
// parent's duration, bpm and key override whatever the model chose, and the
// relation must not be "original".
func decodeIntent(raw []byte, parent *intent.Intent, out *intent.Intent) error {
	var in intent.Intent
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if parent != nil {
		in.InheritFrom(parent)
		if err := in.ValidateChild(); err != nil {
			return fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
	} else if err := in.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	*out = in
	return nil
}

func decodeEnhancement(raw []byte, out *intent.Enhancement) error {
	var e intent.Enhancement
	if err := json.Unmarshal(raw, &e); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	*out = e
	return nil
}
