// Package track provides the Track domain entity.
package track

import "math"

// Track represents one playable song of an album.
// Values are immutable once loaded from the catalog.
type Track struct {
	Title    string  `yaml:"title" validate:"required"`
	AudioURI string  `yaml:"audio_uri" validate:"required"`
	Duration float64 `yaml:"duration" validate:"gte=0"` // Nominal duration in seconds
}

// HasNominalDuration reports whether the catalog supplied a usable duration.
func (t *Track) HasNominalDuration() bool {
	return t.Duration > 0 && !math.IsInf(t.Duration, 0) && !math.IsNaN(t.Duration)
}
