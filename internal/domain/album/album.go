// Package album provides the Album domain entity.
package album

import (
	"github.com/osa030/trackdeck/internal/domain/track"
)

// Album represents an ordered, immutable collection of tracks.
type Album struct {
	Slug          string        `yaml:"slug" validate:"required"`
	Title         string        `yaml:"title" validate:"required"`
	Artist        string        `yaml:"artist"`
	ReleaseInfo   string        `yaml:"release_info"`
	CoverImageURI string        `yaml:"cover_image_uri"`
	Tracks        []track.Track `yaml:"tracks" validate:"required,min=1,dive"`
}

// Len returns the number of tracks.
func (a *Album) Len() int {
	return len(a.Tracks)
}

// LastIndex returns the index of the last track, or -1 for an empty album.
func (a *Album) LastIndex() int {
	return len(a.Tracks) - 1
}

// InRange reports whether i addresses a track of the album.
func (a *Album) InRange(i int) bool {
	return i >= 0 && i < len(a.Tracks)
}

// Track returns the track at index i.
func (a *Album) Track(i int) (track.Track, bool) {
	if !a.InRange(i) {
		return track.Track{}, false
	}
	return a.Tracks[i], true
}

// TotalDuration returns the sum of the nominal track durations in seconds.
func (a *Album) TotalDuration() float64 {
	var total float64
	for _, t := range a.Tracks {
		if t.HasNominalDuration() {
			total += t.Duration
		}
	}
	return total
}
