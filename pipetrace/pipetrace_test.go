package pipetrace

import (
	"os"
	"strings"
	"testing"

	"github.com/PascalJPan/re-be/intent"
	"github.com/PascalJPan/re-be/palette"
	"github.com/PascalJPan/re-be/squiggle"
)

func sampleTrace() *Trace {
	return &Trace{
		Kind:     "post",
		ID:       "post00000001",
		Username: "alice",
		ColorHex: "#3A5FCD",
		Color:    palette.Color{Hex: "#3A5FCD", HueCategory: palette.CoolBlue, Saturation: 0.6, Lightness: 0.5},
		Analysis: &intent.ImageAnalysis{
			SceneDescription: "a foggy harbor",
			Vibe:             "cold salt stillness",
		},
		Features: squiggle.Features{TotalLength: 1.2, PointCount: 40},
		Object: &intent.Intent{
			AudioType: intent.TypeMusic,
			Mood:      intent.Mood{Primary: "calm", Secondary: "wistful"},
		},
		CompiledPrompt: "Instrumental music track.",
		AudioFilename:  "post00000001.mp3",
		Enhancement:    &intent.Enhancement{MorphingPrompt: "Deepen the shadows."},
		MorphStatus:    "success",
	}
}

func TestWritePostTrace(t *testing.T) {
	w := New(t.TempDir())
	path, err := w.Write(sampleTrace())
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)

	for _, want := range []string{
		"PIPELINE TRACE — POST",
		"STEP 1: COLOR DERIVATION",
		"STEP 4: IMAGE ENHANCEMENT PROMPT",
		"STEP 5: IMAGE MORPHING",
		"SUCCESS",
		"STEP 6: AUDIO STRUCTURED OBJECT",
		"STEP 7: COMPILED PROMPT",
		`"Instrumental music track."`,
		"TRACE COMPLETE — post00000001.mp3",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("trace missing %q", want)
		}
	}
}

func TestWriteCommentTraceNumbering(t *testing.T) {
	// Comments have no morph branch: the intent step is 4, not 6, and the
	// parent object is included.
	tr := sampleTrace()
	tr.Kind = "comment"
	tr.Enhancement = nil
	tr.MorphStatus = ""
	tr.Parent = &intent.Intent{AudioType: intent.TypeMusic}

	w := New(t.TempDir())
	path, err := w.Write(tr)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, _ := os.ReadFile(path)
	text := string(data)

	if !strings.Contains(text, "STEP 4: AUDIO STRUCTURED OBJECT") {
		t.Error("comment trace should number the intent step 4")
	}
	if strings.Contains(text, "IMAGE MORPHING") {
		t.Error("comment trace should have no morph step")
	}
	if !strings.Contains(text, "PARENT POST AUDIO OBJECT") {
		t.Error("comment trace missing parent section")
	}
	if !strings.Contains(text, "+ parent audio object") {
		t.Error("comment trace missing parent input note")
	}
}

func TestWriteMorphFailureNoted(t *testing.T) {
	tr := sampleTrace()
	tr.MorphStatus = "failed:morph:model down"

	w := New(t.TempDir())
	path, err := w.Write(tr)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "original image used instead") {
		t.Error("morph failure not noted")
	}
}

func TestWriteDisabled(t *testing.T) {
	w := New("")
	path, err := w.Write(sampleTrace())
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty for disabled writer", path)
	}
}
