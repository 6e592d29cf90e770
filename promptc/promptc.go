// Package promptc compiles a structured audio intent, a classified color, an
// image analysis and squiggle features into the single natural-language
// prompt sent to the audio synthesis API.
//
// Compilation is a pure function of its four inputs: fixed mapping tables,
// fixed clause order, fixed fallback literals. Generated audio quality
// depends on prompt shape, so the exact output string is covered by
// regression tests and must not drift.
package promptc

import (
	"strconv"
	"strings"

	"github.com/PascalJPan/re-be/intent"
	"github.com/PascalJPan/re-be/palette"
	"github.com/PascalJPan/re-be/squiggle"
)

// Thresholds are the tuning constants of the three mappers. The zero value
// selects the production set; deployments that retune them must document
// their values next to the config.
type Thresholds struct {
	// FastSpeed and SlowSpeed split average gesture speed (normalized
	// units per millisecond) into the three rhythm regimes.
	FastSpeed float64
	SlowSpeed float64
	// SpeedVariance separates erratic from steady rhythms above FastSpeed.
	SpeedVariance float64
	// LongPath and ShortPath trigger the complexity suffixes.
	LongPath  float64
	ShortPath float64
	// Vivid/Subdued bound the saturation modifiers, Airy/Dark the
	// lightness modifiers. Strictly greater/less than; the middle band
	// adds nothing.
	Vivid   float64
	Subdued float64
	Airy    float64
	Dark    float64
}

func (t *Thresholds) defaults() {
	if t.FastSpeed == 0 {
		t.FastSpeed = 0.003
	}
	if t.SlowSpeed == 0 {
		t.SlowSpeed = 0.0005
	}
	if t.SpeedVariance == 0 {
		t.SpeedVariance = 0.00002
	}
	if t.LongPath == 0 {
		t.LongPath = 2.0
	}
	if t.ShortPath == 0 {
		t.ShortPath = 0.5
	}
	if t.Vivid == 0 {
		t.Vivid = 0.7
	}
	if t.Subdued == 0 {
		t.Subdued = 0.3
	}
	if t.Airy == 0 {
		t.Airy = 0.7
	}
	if t.Dark == 0 {
		t.Dark = 0.3
	}
}

// Compile builds the synthesis prompt with the production thresholds.
func Compile(in *intent.Intent, color palette.Color, analysis intent.ImageAnalysis, feats squiggle.Features) string {
	return CompileWith(Thresholds{}, in, color, analysis, feats)
}

// CompileWith builds the synthesis prompt with explicit thresholds. It is
// total: every optional field has a documented fallback and no well-typed
// input can make it fail.
func CompileWith(th Thresholds, in *intent.Intent, color palette.Color, analysis intent.ImageAnalysis, feats squiggle.Features) string {
	th.defaults()

	tone := th.Tone(color)
	rhythm := th.Rhythm(feats)
	energy := th.Energy(in.Energy)

	mood := in.Mood.Primary + " and " + in.Mood.Secondary

	texture := "smooth"
	if len(in.Texture) > 0 {
		texture = strings.Join(in.Texture, ", ")
	}

	refs := "abstract tones"
	if len(in.SoundReferences) > 0 {
		use := in.SoundReferences
		if len(use) > 6 {
			use = use[:6]
		}
		refs = strings.Join(use, ", ")
	}

	var b strings.Builder

	b.WriteString("Instrumental " + string(in.AudioType) + " track. ")
	if in.GenreHint != "" {
		b.WriteString("Genre: " + in.GenreHint + ". ")
	}

	b.WriteString("Scene: " + analysis.SceneDescription + ". Vibe: " + analysis.Vibe + ". ")

	var setting []string
	if analysis.TimeOfDay != "" {
		setting = append(setting, analysis.TimeOfDay)
	}
	if analysis.Environment != "" {
		setting = append(setting, analysis.Environment)
	}
	if len(setting) > 0 {
		b.WriteString("Setting: " + strings.Join(setting, " ") + ". ")
	}

	if analysis.SonicMetaphor != "" {
		b.WriteString("Sounds like: " + analysis.SonicMetaphor + ". ")
	}

	b.WriteString(capitalize(energy) + ", " + mood + " mood with a " + tone +
		" tonal palette, " + texture + " textures, and " + rhythm + ". ")

	if len(in.Instruments) > 0 {
		b.WriteString("Instruments: " + strings.Join(in.Instruments, ", ") + ". ")
	}
	if in.SonicPalette != "" {
		b.WriteString("Timbre: " + in.SonicPalette + ". ")
	}
	if in.HarmonicMood != "" {
		b.WriteString("Harmonic feel: " + in.HarmonicMood + ". ")
	}
	if in.DynamicShape != "" {
		b.WriteString("Dynamic shape: " + in.DynamicShape + ". ")
	}

	b.WriteString("Drawing from: " + refs + ". ")
	b.WriteString("Make it musically engaging with clear rhythm and forward momentum. ")

	if in.BPM != nil {
		b.WriteString(strconv.Itoa(*in.BPM) + " BPM, ")
	}
	if in.MusicalKey != "" {
		b.WriteString("in " + in.MusicalKey + ", ")
	}
	b.WriteString(string(in.Tempo) + " tempo, " + string(in.Density) + " density, " +
		strconv.Itoa(in.DurationSeconds) + " seconds long. Instrumental only, no vocals, no lyrics.")

	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
