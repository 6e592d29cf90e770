package promptc

import (
	"github.com/PascalJPan/re-be/palette"
	"github.com/PascalJPan/re-be/squiggle"
)

// toneTable maps each hue category to its base tonal phrase. Unknown
// categories fall back to "balanced" rather than failing: the compiler is
// total over well-typed input.
var toneTable = map[palette.HueCategory]string{
	palette.WarmRed:     "warm and bold",
	palette.WarmOrange:  "warm and earthy",
	palette.WarmYellow:  "bright and radiant",
	palette.WarmMagenta: "warm and lush",
	palette.CoolBlue:    "cool and ethereal",
	palette.CoolCyan:    "crisp and spacious",
	palette.CoolPurple:  "deep and mysterious",
	palette.CoolGreen:   "organic and verdant",
	palette.NeutralGray: "muted and minimal",
}

// Tone maps a color onto its tonal phrase. The saturation and lightness
// modifiers are appended independently, so both may appear at once.
func (t Thresholds) Tone(c palette.Color) string {
	t.defaults()

	tone, ok := toneTable[c.HueCategory]
	if !ok {
		tone = "balanced"
	}

	if c.Saturation > t.Vivid {
		tone += ", vivid"
	} else if c.Saturation < t.Subdued {
		tone += ", subdued"
	}

	if c.Lightness > t.Airy {
		tone += ", airy"
	} else if c.Lightness < t.Dark {
		tone += ", dark"
	}

	return tone
}

// Rhythm maps gesture kinematics onto a rhythmic character phrase.
func (t Thresholds) Rhythm(f squiggle.Features) string {
	t.defaults()

	var rhythm string
	switch {
	case f.AverageSpeed > t.FastSpeed:
		if f.SpeedVariance > t.SpeedVariance {
			rhythm = "erratic, percussive rhythms"
		} else {
			rhythm = "driving, steady rhythms"
		}
	case f.AverageSpeed < t.SlowSpeed:
		rhythm = "sustained pads and slow drones"
	default:
		rhythm = "flowing, melodic phrases"
	}

	if f.TotalLength > t.LongPath {
		rhythm += " with layered complexity"
	} else if f.TotalLength < t.ShortPath {
		rhythm += " with focused simplicity"
	}

	return rhythm
}

// Energy maps raw energy in [0,1] onto one of five descriptor phrases.
// The raw value is first compressed upward onto [0.3, 1.0] — quiet scenes
// still need musical movement — then bucketed with half-open intervals
// (boundary values belong to the upper bucket).
func (t Thresholds) Energy(raw float64) string {
	e := 0.3 + raw*0.7
	switch {
	case e < 0.4:
		return "steadily grooving"
	case e < 0.55:
		return "building momentum"
	case e < 0.7:
		return "driving and pulsing"
	case e < 0.85:
		return "intensely surging"
	default:
		return "explosively energetic"
	}
}
