// CLAUDE:SUMMARY Writes one human-readable .txt trace per pipeline run: every step's input and output in order.
//
// Package pipetrace records a completed generation run as a plain-text file,
// one per post, recreate or comment. Traces are for humans debugging why a
// clip sounds the way it does; they are written best-effort and never block
// the pipeline.
package pipetrace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PascalJPan/re-be/intent"
	"github.com/PascalJPan/re-be/palette"
	"github.com/PascalJPan/re-be/squiggle"
)

// Trace holds everything one pipeline run produced.
type Trace struct {
	Kind           string // "post", "recreate", "comment"
	ID             string
	Username       string
	ColorHex       string
	Color          palette.Color
	Analysis       *intent.ImageAnalysis
	Features       squiggle.Features
	Object         *intent.Intent
	CompiledPrompt string
	AudioFilename  string

	// Post pipelines only.
	Enhancement *intent.Enhancement
	MorphStatus string

	// Comment pipelines only.
	Parent *intent.Intent
}

// Writer writes traces into a directory.
type Writer struct {
	Dir string
}

// New creates a Writer. An empty dir disables tracing: Write becomes a no-op.
func New(dir string) *Writer {
	return &Writer{Dir: dir}
}

const bar = "================================================================================"

// Write renders the trace and writes it to {kind}_{id}_{timestamp}.txt.
// It returns the file path.
func (w *Writer) Write(t *Trace) (string, error) {
	if w == nil || w.Dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("pipetrace: mkdir: %w", err)
	}

	now := time.Now()
	filename := fmt.Sprintf("%s_%s_%s.txt", t.Kind, t.ID, now.Format("20060102_150405"))
	path := filepath.Join(w.Dir, filename)

	var b strings.Builder
	line := func(s string) { b.WriteString(s); b.WriteByte('\n') }
	section := func(title string) {
		b.WriteByte('\n')
		line(bar)
		line(" " + title)
		line(bar)
	}

	line(bar)
	line("  PIPELINE TRACE — " + strings.ToUpper(t.Kind))
	line(fmt.Sprintf("  ID: %s  |  User: %s  |  %s", t.ID, t.Username, now.Format(time.RFC3339)))
	line(bar)

	section("STEP 1: COLOR DERIVATION")
	line("Input hex: " + t.ColorHex)
	line("")
	line(pretty(t.Color))

	section("STEP 2: IMAGE ANALYSIS (Gemini vision)")
	line("Input: user-uploaded image (binary)")
	line("")
	line("Output (ImageAnalysis):")
	line(pretty(t.Analysis))

	section("STEP 3: SQUIGGLE FEATURE EXTRACTION")
	line("Output (SquiggleFeatures):")
	line(pretty(t.Features))

	step := 4
	if t.Enhancement != nil {
		section(fmt.Sprintf("STEP %d: IMAGE ENHANCEMENT PROMPT (Gemini)", step))
		line("Input: ImageAnalysis + Color + SquiggleFeatures")
		line("")
		line("Output (Enhancement):")
		line(pretty(t.Enhancement))
		step++

		section(fmt.Sprintf("STEP %d: IMAGE MORPHING (Gemini image editing)", step))
		line("Input image: original + color overlay")
		line(fmt.Sprintf("Prompt sent to the editor:\n\n  %q", t.Enhancement.MorphingPrompt))
		switch {
		case t.MorphStatus == "success":
			line("Output: morphed image bytes (stored as post image) — SUCCESS")
		case strings.HasPrefix(t.MorphStatus, "failed:"):
			line(fmt.Sprintf("Output: FAILED — %s  (original image used instead)", t.MorphStatus))
		default:
			line("Output: morph status unknown")
		}
		step++
	}

	if t.Parent != nil {
		section("PARENT POST AUDIO OBJECT (inherited bpm/key/duration)")
		line(pretty(t.Parent))
	}

	section(fmt.Sprintf("STEP %d: AUDIO STRUCTURED OBJECT (Gemini)", step))
	in := "Input: ImageAnalysis + Color + SquiggleFeatures"
	if t.Parent != nil {
		in += " + parent audio object"
	}
	line(in)
	line("")
	line("Output (Intent):")
	line(pretty(t.Object))
	step++

	section(fmt.Sprintf("STEP %d: COMPILED PROMPT (deterministic logic)", step))
	line("Input: Intent + Color + ImageAnalysis + SquiggleFeatures")
	line("")
	line("Output (prompt string sent to ElevenLabs):")
	line("")
	line(fmt.Sprintf("  %q", t.CompiledPrompt))
	step++

	section(fmt.Sprintf("STEP %d: ELEVENLABS AUDIO GENERATION", step))
	line("Output: " + t.AudioFilename)

	line("")
	line(bar)
	line("  TRACE COMPLETE — " + t.AudioFilename)
	line(bar)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("pipetrace: write: %w", err)
	}
	return path, nil
}

func pretty(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
