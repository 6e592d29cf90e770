// Package intent defines the typed records exchanged along the generation
// pipeline: the image analysis produced by the vision model, the structured
// audio intent produced by the language model, and the image enhancement
// prompt driving the morph branch.
//
// The models return free-form JSON; Validate enforces the closed string sets
// and numeric ranges at the boundary so the rest of the system never sees a
// malformed object.
package intent

import (
	"errors"
	"fmt"
)

// ErrInvalid wraps all boundary validation failures.
var ErrInvalid = errors.New("intent: invalid object")

// AudioType is the closed set of clip categories.
type AudioType string

const (
	TypeMusic   AudioType = "music"
	TypeAmbient AudioType = "ambient"
	TypeHybrid  AudioType = "hybrid"
)

// Tempo is the coarse tempo class.
type Tempo string

const (
	TempoSlow   Tempo = "slow"
	TempoMedium Tempo = "medium"
	TempoFast   Tempo = "fast"
)

// Density is the arrangement density class.
type Density string

const (
	DensitySparse Density = "sparse"
	DensityMedium Density = "medium"
	DensityDense  Density = "dense"
)

// Relation ties a generated clip to its parent post. Posts are "original";
// comments must be one of the other three.
type Relation string

const (
	RelationOriginal  Relation = "original"
	RelationMirror    Relation = "mirror"
	RelationVariation Relation = "variation"
	RelationContrast  Relation = "contrast"
)

// Mood is the two-word emotional summary of a clip.
type Mood struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// Intent is the structured audio object generated from image analysis,
// color and squiggle features. Pointer/empty fields are optional; the
// compiler substitutes documented fallbacks for the ones it needs.
type Intent struct {
	AudioType       AudioType `json:"audio_type"`
	Mood            Mood      `json:"mood"`
	Energy          float64   `json:"energy"`
	Tempo           Tempo     `json:"tempo"`
	Density         Density   `json:"density"`
	Texture         []string  `json:"texture"`
	SoundReferences []string  `json:"sound_references"`
	DurationSeconds int       `json:"duration_seconds"`
	RelationToParent Relation `json:"relation_to_parent"`
	Confidence      float64   `json:"confidence"`

	BPM          *int     `json:"bpm,omitempty"`
	MusicalKey   string   `json:"musical_key,omitempty"`
	Instruments  []string `json:"instruments,omitempty"`
	GenreHint    string   `json:"genre_hint,omitempty"`
	HarmonicMood string   `json:"harmonic_mood,omitempty"`
	DynamicShape string   `json:"dynamic_shape,omitempty"`
	SonicPalette string   `json:"sonic_palette,omitempty"`
}

// Validate checks closed sets and numeric ranges. Comment objects must
// additionally not claim the "original" relation; callers enforce that with
// ValidateChild.
func (in *Intent) Validate() error {
	switch in.AudioType {
	case TypeMusic, TypeAmbient, TypeHybrid:
	default:
		return fmt.Errorf("%w: audio_type %q", ErrInvalid, in.AudioType)
	}
	switch in.Tempo {
	case TempoSlow, TempoMedium, TempoFast:
	default:
		return fmt.Errorf("%w: tempo %q", ErrInvalid, in.Tempo)
	}
	switch in.Density {
	case DensitySparse, DensityMedium, DensityDense:
	default:
		return fmt.Errorf("%w: density %q", ErrInvalid, in.Density)
	}
	switch in.RelationToParent {
	case RelationOriginal, RelationMirror, RelationVariation, RelationContrast:
	default:
		return fmt.Errorf("%w: relation_to_parent %q", ErrInvalid, in.RelationToParent)
	}
	if in.Energy < 0 || in.Energy > 1 {
		return fmt.Errorf("%w: energy %v", ErrInvalid, in.Energy)
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v", ErrInvalid, in.Confidence)
	}
	if in.DurationSeconds <= 0 {
		return fmt.Errorf("%w: duration_seconds %d", ErrInvalid, in.DurationSeconds)
	}
	if in.Mood.Primary == "" || in.Mood.Secondary == "" {
		return fmt.Errorf("%w: incomplete mood", ErrInvalid)
	}
	return nil
}

// ValidateChild validates a comment intent: everything Validate checks, plus
// the relation must never be "original".
func (in *Intent) ValidateChild() error {
	if err := in.Validate(); err != nil {
		return err
	}
	if in.RelationToParent == RelationOriginal {
		return fmt.Errorf("%w: comment relation must not be original", ErrInvalid)
	}
	return nil
}

// InheritFrom copies the musically binding fields from a parent intent:
// duration always, bpm and key when the parent has them. Comments stay in
// the parent's tempo grid and key so they can be layered over it.
func (in *Intent) InheritFrom(parent *Intent) {
	in.DurationSeconds = parent.DurationSeconds
	if parent.BPM != nil {
		bpm := *parent.BPM
		in.BPM = &bpm
	}
	if parent.MusicalKey != "" {
		in.MusicalKey = parent.MusicalKey
	}
}
