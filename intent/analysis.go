package intent

import "fmt"

// ImageAnalysis is the synesthetic scene description produced by the vision
// model for an uploaded image.
type ImageAnalysis struct {
	SceneDescription string   `json:"scene_description"`
	DetectedObjects  []string `json:"detected_objects"`
	Vibe             string   `json:"vibe"`
	Emotion          string   `json:"emotion"`
	DominantColors   []string `json:"dominant_colors"`

	Environment string `json:"environment,omitempty"`
	TimeOfDay   string `json:"time_of_day,omitempty"`
	LocationHint string `json:"location_hint,omitempty"`

	AmbientSoundAssociations []string `json:"ambient_sound_associations"`
	SonicMetaphor            string   `json:"sonic_metaphor,omitempty"`
}

// Validate rejects analyses missing the fields the compiler depends on.
func (a *ImageAnalysis) Validate() error {
	if a.SceneDescription == "" {
		return fmt.Errorf("%w: missing scene_description", ErrInvalid)
	}
	if a.Vibe == "" {
		return fmt.Errorf("%w: missing vibe", ErrInvalid)
	}
	return nil
}

// Enhancement is the creative instruction set for the image morph branch.
type Enhancement struct {
	EmotionalIntent string `json:"emotional_intent"`
	VisualDirective string `json:"visual_directive"`
	MorphingPrompt  string `json:"morphing_prompt"`
	StyleReference  string `json:"style_reference"`
}

// Validate rejects enhancements without a usable morphing prompt.
func (e *Enhancement) Validate() error {
	if e.MorphingPrompt == "" {
		return fmt.Errorf("%w: missing morphing_prompt", ErrInvalid)
	}
	return nil
}
