package audio

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/trackdeck/internal/app/media"
)

// VirtualSettings configures a VirtualResource.
type VirtualSettings struct {
	ProgressIntervalMs int `mapstructure:"progress_interval_ms" default:"250" validate:"gte=10,lte=5000"`
}

// VirtualResource is a clock-driven resource without audio output.
// Local WAV sources report their true duration; other sources play with an
// unknown duration until paused.
type VirtualResource struct {
	hub      *media.Hub
	interval time.Duration
	now      func() time.Time

	mu         sync.Mutex
	uri        string
	duration   float64   // NaN while unknown
	position   float64   // Position at startedAt while playing
	startedAt  time.Time // Wall clock of the last play or seek
	playing    bool
	volume     float64
	closed     bool
	tickCancel context.CancelFunc
}

var _ media.Resource = (*VirtualResource)(nil)

// NewVirtualResource creates a virtual resource.
func NewVirtualResource(settings VirtualSettings) *VirtualResource {
	return &VirtualResource{
		hub:      media.NewHub(),
		interval: time.Duration(settings.ProgressIntervalMs) * time.Millisecond,
		now:      time.Now,
		duration: math.NaN(),
		volume:   1,
	}
}

// Load points the resource at uri.
func (r *VirtualResource) Load(uri string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return media.ErrClosed
	}
	r.resetLocked()

	duration, err := Probe(uri)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnsupportedSource):
		zlog.Debug().Msgf("audio: virtual source without duration: uri=%s", uri)
		duration = math.NaN()
	default:
		return err
	}

	r.uri = uri
	r.duration = duration
	if !math.IsNaN(duration) {
		r.hub.Emit(media.KindDurationKnown, duration)
	}
	return nil
}

// Unload clears the loaded source.
func (r *VirtualResource) Unload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
	return nil
}

// Play starts or resumes the clock. A finished source restarts.
func (r *VirtualResource) Play() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return media.ErrClosed
	}
	if r.uri == "" {
		return media.ErrNoSource
	}
	if r.playing {
		return nil
	}
	if r.durationKnownLocked() && r.position >= r.duration {
		r.position = 0
	}
	r.startedAt = r.now()
	r.playing = true
	r.startTickerLocked()
	return nil
}

// Pause stops the clock.
func (r *VirtualResource) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return media.ErrClosed
	}
	if !r.playing {
		return nil
	}
	r.position = r.positionLocked()
	r.playing = false
	r.stopTickerLocked()
	return nil
}

// Seek moves the clock to seconds, clamped to the source bounds.
func (r *VirtualResource) Seek(seconds float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return media.ErrClosed
	}
	if r.uri == "" {
		return media.ErrNoSource
	}
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	if r.durationKnownLocked() && seconds > r.duration {
		seconds = r.duration
	}
	r.position = seconds
	r.startedAt = r.now()
	r.hub.Emit(media.KindProgress, seconds)
	return nil
}

// SetVolume stores the level; there is no output to apply it to.
func (r *VirtualResource) SetVolume(level float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return media.ErrClosed
	}
	r.volume = level
	return nil
}

// Volume returns the last level set.
func (r *VirtualResource) Volume() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume
}

// CurrentTime returns the clock position in seconds.
func (r *VirtualResource) CurrentTime() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.positionLocked()
}

// Duration returns the source duration, NaN while unknown.
func (r *VirtualResource) Duration() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duration
}

// Generation returns the current source generation.
func (r *VirtualResource) Generation() uint64 {
	return r.hub.Generation()
}

// Subscribe registers fn for notifications of the given kind.
func (r *VirtualResource) Subscribe(kind media.Kind, fn media.Listener) *media.Subscription {
	return r.hub.Subscribe(kind, fn)
}

// Close releases the source and all subscriptions.
func (r *VirtualResource) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.resetLocked()
	r.mu.Unlock()

	r.hub.Close()
	return nil
}

func (r *VirtualResource) resetLocked() {
	r.stopTickerLocked()
	r.hub.Supersede()
	r.uri = ""
	r.duration = math.NaN()
	r.position = 0
	r.playing = false
}

func (r *VirtualResource) durationKnownLocked() bool {
	return !math.IsNaN(r.duration)
}

func (r *VirtualResource) positionLocked() float64 {
	pos := r.position
	if r.playing {
		pos += r.now().Sub(r.startedAt).Seconds()
	}
	if r.durationKnownLocked() && pos > r.duration {
		pos = r.duration
	}
	return pos
}

// startTickerLocked must be called with lock held.
func (r *VirtualResource) startTickerLocked() {
	r.stopTickerLocked()
	ctx, cancel := context.WithCancel(context.Background())
	r.tickCancel = cancel

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !r.tick(ctx) {
					return
				}
			}
		}
	}()
}

func (r *VirtualResource) stopTickerLocked() {
	if r.tickCancel != nil {
		r.tickCancel()
		r.tickCancel = nil
	}
}

// tick emits progress and detects the end of the source.
func (r *VirtualResource) tick(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Superseded by a pause, load or close.
	if ctx.Err() != nil {
		return false
	}

	pos := r.positionLocked()
	if r.durationKnownLocked() && pos >= r.duration {
		r.position = r.duration
		r.playing = false
		r.stopTickerLocked()
		r.hub.Emit(media.KindProgress, r.duration)
		r.hub.Emit(media.KindEnded, r.duration)
		return false
	}

	r.hub.Emit(media.KindProgress, pos)
	return true
}
