//go:build !headless

package audio

import (
	"context"
	"io"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ebitengine/oto/v3"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/trackdeck/internal/app/media"
)

// OtoResource renders WAV sources through an oto audio context.
type OtoResource struct {
	hub      *media.Hub
	ctx      *oto.Context
	settings OtoSettings
	interval time.Duration

	mu         sync.Mutex
	uri        string
	source     *pcm
	reader     *pcmReader
	player     *oto.Player
	playing    bool
	volume     float64
	closed     bool
	tickCancel context.CancelFunc
}

var _ media.Resource = (*OtoResource)(nil)

// NewOtoResource opens the audio device. Only one oto context may exist per
// process.
func NewOtoResource(settings OtoSettings) (media.Resource, error) {
	op := &oto.NewContextOptions{
		SampleRate:   settings.SampleRate,
		ChannelCount: settings.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(settings.BufferMs) * time.Millisecond,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to open audio device"), ErrOutputUnavailable)
	}
	<-ready

	return &OtoResource{
		hub:      media.NewHub(),
		ctx:      ctx,
		settings: settings,
		interval: time.Duration(settings.ProgressIntervalMs) * time.Millisecond,
		volume:   1,
	}, nil
}

// Load decodes uri and prepares a player for it.
func (r *OtoResource) Load(uri string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return media.ErrClosed
	}
	r.releaseLocked()

	src, err := decodePCM(uri)
	if err != nil {
		return err
	}
	if src.sampleRate != r.settings.SampleRate || src.numChannels != r.settings.Channels {
		return errors.Wrapf(ErrFormatMismatch, "%s: %dHz/%dch, output %dHz/%dch",
			uri, src.sampleRate, src.numChannels, r.settings.SampleRate, r.settings.Channels)
	}

	r.uri = uri
	r.source = src
	r.reader = &pcmReader{data: src.data}
	r.player = r.ctx.NewPlayer(r.reader)
	r.player.SetVolume(r.volume)

	zlog.Debug().Msgf("audio: loaded %s: %.3fs", uri, src.duration())
	r.hub.Emit(media.KindDurationKnown, src.duration())
	return nil
}

// Unload stops playback and drops the decoded source.
func (r *OtoResource) Unload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releaseLocked()
}

// Play starts or resumes output. A finished source restarts.
func (r *OtoResource) Play() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return media.ErrClosed
	}
	if r.player == nil {
		return media.ErrNoSource
	}
	if r.playing {
		return nil
	}
	if r.reader.exhausted() {
		if _, err := r.player.Seek(0, io.SeekStart); err != nil {
			return errors.Wrap(err, "failed to rewind")
		}
	}
	r.player.Play()
	r.playing = true
	r.startTickerLocked()
	return nil
}

// Pause pauses output.
func (r *OtoResource) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return media.ErrClosed
	}
	if r.player == nil || !r.playing {
		return nil
	}
	r.player.Pause()
	r.playing = false
	r.stopTickerLocked()
	return nil
}

// Seek moves output to seconds, aligned to a frame boundary.
func (r *OtoResource) Seek(seconds float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return media.ErrClosed
	}
	if r.player == nil {
		return media.ErrNoSource
	}
	if _, err := r.player.Seek(r.source.offsetAt(seconds), io.SeekStart); err != nil {
		return errors.Wrap(err, "failed to seek")
	}
	r.hub.Emit(media.KindProgress, r.positionLocked())
	return nil
}

// SetVolume sets the output level.
func (r *OtoResource) SetVolume(level float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return media.ErrClosed
	}
	r.volume = level
	if r.player != nil {
		r.player.SetVolume(level)
	}
	return nil
}

// CurrentTime returns the audible position in seconds.
func (r *OtoResource) CurrentTime() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.positionLocked()
}

// Duration returns the source duration, NaN when nothing is loaded.
func (r *OtoResource) Duration() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.source == nil {
		return math.NaN()
	}
	return r.source.duration()
}

// Generation returns the current source generation.
func (r *OtoResource) Generation() uint64 {
	return r.hub.Generation()
}

// Subscribe registers fn for notifications of the given kind.
func (r *OtoResource) Subscribe(kind media.Kind, fn media.Listener) *media.Subscription {
	return r.hub.Subscribe(kind, fn)
}

// Close releases the player, suspends the device and drops all
// subscriptions.
func (r *OtoResource) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	err := r.releaseLocked()
	if serr := r.ctx.Suspend(); serr != nil {
		err = errors.CombineErrors(err, errors.Wrap(serr, "failed to suspend audio device"))
	}
	r.mu.Unlock()

	r.hub.Close()
	return err
}

func (r *OtoResource) releaseLocked() error {
	r.stopTickerLocked()
	r.hub.Supersede()
	r.playing = false
	r.uri = ""
	r.source = nil
	r.reader = nil
	if r.player == nil {
		return nil
	}
	err := r.player.Close()
	r.player = nil
	if err != nil {
		return errors.Wrap(err, "failed to close player")
	}
	return nil
}

// positionLocked subtracts what oto buffered but has not played yet.
func (r *OtoResource) positionLocked() float64 {
	if r.player == nil {
		return 0
	}
	return r.source.positionAt(r.reader.offset(), int64(r.player.BufferedSize()))
}

func (r *OtoResource) startTickerLocked() {
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

func (r *OtoResource) stopTickerLocked() {
	if r.tickCancel != nil {
		r.tickCancel()
		r.tickCancel = nil
	}
}

func (r *OtoResource) tick(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil || r.player == nil {
		return false
	}
	if err := r.player.Err(); err != nil {
		zlog.Warn().Msgf("audio: player error: uri=%s: %v", r.uri, err)
	}

	if r.reader.exhausted() && !r.player.IsPlaying() {
		end := r.source.duration()
		r.playing = false
		r.stopTickerLocked()
		r.hub.Emit(media.KindProgress, end)
		r.hub.Emit(media.KindEnded, end)
		return false
	}

	r.hub.Emit(media.KindProgress, r.positionLocked())
	return true
}
