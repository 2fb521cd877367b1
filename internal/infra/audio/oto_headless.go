//go:build headless

package audio

import "github.com/osa030/trackdeck/internal/app/media"

// NewOtoResource is unavailable in headless builds.
func NewOtoResource(settings OtoSettings) (media.Resource, error) {
	return nil, ErrOutputUnavailable
}
