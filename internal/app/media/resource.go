// Package media defines the single-track media resource driven by the
// playback controller and the notification hub resources use to report
// progress.
package media

import "github.com/cockroachdb/errors"

// Errors
var (
	ErrNoSource = errors.New("no source loaded")
	ErrClosed   = errors.New("resource closed")
)

// Resource is a single-track audio rendering handle.
// Commands return immediately; progress is reported asynchronously through
// subscriptions, in emission order.
type Resource interface {
	// Load points the resource at uri. Playback stops and the position resets.
	Load(uri string) error
	// Unload clears the loaded source.
	Unload() error
	Play() error
	Pause() error
	// Seek moves the playback position to seconds.
	Seek(seconds float64) error
	// SetVolume sets the output level in [0, 1].
	SetVolume(level float64) error
	// CurrentTime returns the playback position in seconds.
	CurrentTime() float64
	// Duration returns the source duration in seconds, NaN while unknown.
	Duration() float64
	// Generation identifies the current source. It changes on every Load and
	// Unload and is stamped on each notification.
	Generation() uint64
	// Subscribe registers fn for notifications of the given kind.
	Subscribe(kind Kind, fn Listener) *Subscription
	// Close releases the source, all subscriptions and any output device.
	Close() error
}
