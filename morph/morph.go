// CLAUDE:SUMMARY Image morph branch: color overlay composite, downscale guard, and the editing-model call.
//
// Package morph prepares an uploaded image for the editing model and applies
// the enhancement prompt to it. The chosen color is composited over the
// image first so the edit starts from the user's palette; opacity scales
// with the color's saturation (10-30%).
package morph

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"strconv"

	_ "image/gif"
	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"

	"github.com/PascalJPan/re-be/intent"
	"github.com/PascalJPan/re-be/palette"
)

// Editor applies a text instruction to an image and returns the edited bytes.
type Editor interface {
	EditImage(ctx context.Context, image []byte, prompt string) ([]byte, error)
}

// Config configures the morpher.
type Config struct {
	// MaxDim caps the longer image side before the editing call. Larger
	// uploads are downscaled to keep request sizes sane. Default: 1536.
	MaxDim int `yaml:"max_dim"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxDim <= 0 {
		c.MaxDim = 1536
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Morpher runs the image morph branch.
type Morpher struct {
	editor Editor
	cfg    Config
}

// New creates a Morpher around an Editor.
func New(editor Editor, cfg Config) *Morpher {
	cfg.defaults()
	return &Morpher{editor: editor, cfg: cfg}
}

// Morph composites the color over the image, downscales if needed, and asks
// the editor to apply the enhancement's morphing prompt.
func (m *Morpher) Morph(ctx context.Context, imageBytes []byte, c palette.Color, enh *intent.Enhancement) ([]byte, error) {
	composited, err := Compose(imageBytes, c, m.cfg.MaxDim)
	if err != nil {
		return nil, err
	}
	m.cfg.Logger.Info("morphing image",
		"input_bytes", len(imageBytes), "composited_bytes", len(composited),
		"prompt_chars", len(enh.MorphingPrompt))

	out, err := m.editor.EditImage(ctx, composited, enh.MorphingPrompt)
	if err != nil {
		return nil, fmt.Errorf("morph: edit: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("morph: editor returned empty image")
	}
	return out, nil
}

// Compose decodes the image, downscales it so the longer side is at most
// maxDim, composites the color overlay, and re-encodes as PNG.
func Compose(imageBytes []byte, c palette.Color, maxDim int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("morph: decode image: %w", err)
	}

	src = downscale(src, maxDim)

	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)

	r, g, bl, err := parseHex(c.Hex)
	if err != nil {
		return nil, err
	}
	overlay := image.NewUniform(color.NRGBA{R: r, G: g, B: bl, A: overlayAlpha(c.Saturation)})
	draw.Draw(dst, b, overlay, image.Point{}, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("morph: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// overlayAlpha maps saturation in [0,1] onto a 10-30% opacity.
func overlayAlpha(saturation float64) uint8 {
	return uint8(255 * (0.10 + 0.20*saturation))
}

func downscale(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	longer := max(w, h)
	if longer <= maxDim {
		return src
	}
	scale := float64(maxDim) / float64(longer)
	nw, nh := int(float64(w)*scale), int(float64(h)*scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

func parseHex(hex string) (r, g, b uint8, err error) {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("morph: bad hex color %q", hex)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("morph: bad hex color %q", hex)
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}
