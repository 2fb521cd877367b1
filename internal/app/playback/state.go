// Package playback provides the single-album playback controller.
package playback

import "github.com/osa030/trackdeck/internal/domain/track"

// State represents the playback state.
type State int

const (
	StatePaused  State = iota // Nothing is rendering
	StatePlaying              // Current track is rendering
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// NoHover is the HoveredIndex value when no row is hovered.
const NoHover = -1

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	AlbumSlug    string
	CurrentIndex int
	Track        track.Track
	State        State
	Elapsed      float64 // Seconds, >= 0
	Duration     float64 // Seconds, 0 while unknown
	HoveredIndex int     // NoHover when unset

	ElapsedText  string
	DurationText string
}

// IsPlaying reports whether the current track is playing.
func (s Snapshot) IsPlaying() bool {
	return s.State == StatePlaying
}

// Progress returns the elapsed fraction in [0, 1], or 0 when the duration
// is unknown.
func (s Snapshot) Progress() float64 {
	if !knownDuration(s.Duration) {
		return 0
	}
	return clampUnit(s.Elapsed / s.Duration)
}
