// Package palette classifies a user-selected RGB color into the hue
// categories the prompt compiler maps onto tonal qualities.
//
// Classification goes through HSL: near-gray colors (saturation < 0.10) are
// binned as neutral regardless of hue, everything else falls into one of 8
// hue-angle bins. The result is computed once per submission and never
// mutated.
package palette

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidColor is returned for anything that is not exactly 6 hex digits
// after an optional leading '#'.
var ErrInvalidColor = errors.New("palette: invalid hex color")

// HueCategory is the closed set of color bins understood by the compiler.
type HueCategory string

const (
	WarmRed     HueCategory = "warm_red"
	WarmOrange  HueCategory = "warm_orange"
	WarmYellow  HueCategory = "warm_yellow"
	WarmMagenta HueCategory = "warm_magenta"
	CoolGreen   HueCategory = "cool_green"
	CoolCyan    HueCategory = "cool_cyan"
	CoolBlue    HueCategory = "cool_blue"
	CoolPurple  HueCategory = "cool_purple"
	NeutralGray HueCategory = "neutral_gray"
)

// Color is the derived color description. Saturation and Lightness are
// rounded to 3 decimal places.
type Color struct {
	Hex         string      `json:"hex"`
	HueCategory HueCategory `json:"hue_category"`
	Saturation  float64     `json:"saturation"`
	Lightness   float64     `json:"lightness"`
}

// Classify derives a Color from a 6-hex-digit RGB string such as "#FF8800".
func Classify(hex string) (Color, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(clean) != 6 {
		return Color{}, ErrInvalidColor
	}
	n, err := strconv.ParseUint(clean, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}

	r := float64(n>>16&0xFF) / 255
	g := float64(n>>8&0xFF) / 255
	b := float64(n&0xFF) / 255

	hueDeg, sat, light := rgbToHSL(r, g, b)

	var category HueCategory
	switch {
	case sat < 0.10:
		category = NeutralGray // overrides hue entirely
	case hueDeg < 15 || hueDeg >= 345:
		category = WarmRed
	case hueDeg < 45:
		category = WarmOrange
	case hueDeg < 70:
		category = WarmYellow
	case hueDeg < 160:
		category = CoolGreen
	case hueDeg < 200:
		category = CoolCyan
	case hueDeg < 260:
		category = CoolBlue
	case hueDeg < 290:
		category = CoolPurple
	default:
		category = WarmMagenta
	}

	return Color{
		Hex:         "#" + clean,
		HueCategory: category,
		Saturation:  round3(sat),
		Lightness:   round3(light),
	}, nil
}

// rgbToHSL converts sRGB in [0,1] to (hue in degrees, saturation, lightness).
func rgbToHSL(r, g, b float64) (h, s, l float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	l = (max + min) / 2

	if max == min {
		return 0, 0, l // achromatic
	}

	d := max - min
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}

	switch max {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	return h * 60, s, l
}

func round3(v float64) float64 {
	return math.Round(v*1e3) / 1e3
}
