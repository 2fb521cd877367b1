package playback

import (
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/trackdeck/internal/app/media"
	"github.com/osa030/trackdeck/internal/domain/album"
)

// Errors
var (
	ErrEmptyAlbum   = errors.New("album has no tracks")
	ErrInvalidIndex = errors.New("track index out of range")
	ErrLoadFailed   = errors.New("track load failed")
	ErrClosed       = errors.New("controller closed")
)

const defaultEventBuffer = 32

// Config holds controller configuration.
type Config struct {
	InitialVolume float64 // Output level applied at construction, [0, 1]
	EventBuffer   int     // Capacity of the event channel
}

// Controller owns the playback state of one album and the media resource
// rendering it.
type Controller struct {
	mu sync.RWMutex

	album *album.Album
	media media.Resource
	subs  []*media.Subscription

	// Playback state
	current  int
	state    State
	elapsed  float64
	duration float64
	hovered  int
	loaded   bool   // Source of the current track loaded successfully
	gen      uint64 // Resource generation of the current load

	config Config

	// Events
	eventCh chan Event
	closed  bool
}

// NewController creates a controller for alb seeded from its first track.
// The controller takes ownership of res on success; on error the caller
// keeps it. A failed first load leaves the controller paused with
// EventLoadFailed queued; selecting or toggling a track retries.
func NewController(alb *album.Album, res media.Resource, config Config) (*Controller, error) {
	if alb == nil || alb.Len() == 0 {
		return nil, ErrEmptyAlbum
	}
	if res == nil {
		return nil, errors.New("media resource is required")
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = defaultEventBuffer
	}

	c := &Controller{
		album:   alb,
		media:   res,
		state:   StatePaused,
		hovered: NoHover,
		config:  config,
		eventCh: make(chan Event, config.EventBuffer),
	}

	c.subs = []*media.Subscription{
		res.Subscribe(media.KindProgress, c.onProgress),
		res.Subscribe(media.KindDurationKnown, c.onDurationKnown),
		res.Subscribe(media.KindEnded, c.onEnded),
	}

	c.mu.Lock()
	if err := c.loadLocked(0); err != nil {
		zlog.Warn().Msgf("playback: first track unavailable, waiting for a retry: album=%s", alb.Slug)
	}
	c.mu.Unlock()

	if err := res.SetVolume(clampUnit(config.InitialVolume)); err != nil {
		zlog.Warn().Msgf("playback: failed to apply initial volume: %v", err)
	}

	zlog.Debug().Msgf("playback: controller ready: album=%s tracks=%d", alb.Slug, alb.Len())
	return c, nil
}

// Events returns the event channel. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Album returns the album being played.
func (c *Controller) Album() *album.Album {
	return c.album
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// SelectTrack points the resource at the track at index and resets the
// elapsed time. Selecting the current track reloads it. The play flag is
// kept: a playing controller keeps playing the new track.
func (c *Controller) SelectTrack(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.selectLocked(index)
}

// Play starts or resumes playback of the current track.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.playLocked()
}

// Pause pauses playback.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.pauseLocked()
}

// ToggleTrack handles a click on the row at index: the playing track pauses,
// any other track (or the paused current one) starts playing.
func (c *Controller) ToggleTrack(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if !c.album.InRange(index) {
		return c.invalidIndex(index)
	}

	if index == c.current && c.state == StatePlaying {
		return c.pauseLocked()
	}
	// A row whose load failed is retried on click.
	if index != c.current || !c.loaded {
		if err := c.selectLocked(index); err != nil {
			return err
		}
	}
	return c.playLocked()
}

// Previous moves to the previous track and plays it. The first track is
// restarted.
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.navigateLocked(max(0, c.current-1))
}

// Next moves to the next track and plays it. The last track is restarted.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.navigateLocked(min(c.album.LastIndex(), c.current+1))
}

// Seek moves playback to fraction of the duration. Fractions are clamped
// into [0, 1]. Seeking is a no-op while the duration is unknown.
func (c *Controller) Seek(fraction float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if !knownDuration(c.duration) {
		zlog.Debug().Msgf("playback: seek ignored, duration unknown: track=%d", c.current)
		return nil
	}

	target := c.duration * clampUnit(fraction)
	if err := c.media.Seek(target); err != nil {
		return errors.Wrapf(err, "failed to seek to %.3fs", target)
	}
	c.elapsed = target
	c.sendEventLocked(Event{Type: EventProgress})
	return nil
}

// SetVolume forwards level, clamped into [0, 1], to the resource.
func (c *Controller) SetVolume(level float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := c.media.SetVolume(clampUnit(level)); err != nil {
		return errors.Wrap(err, "failed to set volume")
	}
	return nil
}

// HoverEnter marks the row at index as hovered.
func (c *Controller) HoverEnter(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if !c.album.InRange(index) {
		return c.invalidIndex(index)
	}
	if c.hovered != index {
		c.hovered = index
		c.sendEventLocked(Event{Type: EventHoverChanged})
	}
	return nil
}

// HoverLeave clears the hover if index is the hovered row.
func (c *Controller) HoverLeave(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.hovered != index {
		return
	}
	c.hovered = NoHover
	c.sendEventLocked(Event{Type: EventHoverChanged})
}

// RowIndicator returns what the row at index shows in its number column.
func (c *Controller) RowIndicator(index int) Indicator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return rowIndicator(index, c.current, c.hovered, c.state)
}

// Close detaches from the resource, clears its source and closes it.
// Calling Close more than once is a no-op.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StatePaused
	subs := c.subs
	c.subs = nil
	close(c.eventCh)
	c.mu.Unlock()

	// Released after unlocking; closing waits for the resource's dispatcher.
	for _, s := range subs {
		s.Unsubscribe()
	}

	var result error
	if err := c.media.Unload(); err != nil {
		result = errors.CombineErrors(result, errors.Wrap(err, "failed to clear source"))
	}
	if err := c.media.Close(); err != nil {
		result = errors.CombineErrors(result, errors.Wrap(err, "failed to close resource"))
	}

	zlog.Debug().Msgf("playback: controller closed: album=%s", c.album.Slug)
	return result
}

func (c *Controller) navigateLocked(index int) error {
	if err := c.selectLocked(index); err != nil {
		return err
	}
	return c.playLocked()
}

// selectLocked must be called with lock held.
func (c *Controller) selectLocked(index int) error {
	if !c.album.InRange(index) {
		return c.invalidIndex(index)
	}

	wasPlaying := c.state == StatePlaying
	if err := c.loadLocked(index); err != nil {
		return err
	}
	if !wasPlaying {
		return nil
	}

	// Loading stops the resource; keep the play flag truthful.
	if err := c.media.Play(); err != nil {
		c.state = StatePaused
		c.sendEventLocked(Event{Type: EventStateChanged})
		return errors.Wrapf(err, "failed to resume playback of track %d", index)
	}
	return nil
}

// loadLocked repoints the resource at the track at index.
// Must be called with lock held and a valid index.
func (c *Controller) loadLocked(index int) error {
	t := c.album.Tracks[index]

	c.current = index
	c.elapsed = 0
	c.duration = sanitizeSeconds(t.Duration)

	err := c.media.Load(t.AudioURI)
	c.gen = c.media.Generation()
	if err != nil {
		c.loaded = false
		c.state = StatePaused
		loadErr := errors.Mark(
			errors.Wrapf(err, "failed to load track %d (%s)", index, t.AudioURI),
			ErrLoadFailed,
		)
		zlog.Warn().Msgf("playback: %v", loadErr)
		c.sendEventLocked(Event{Type: EventLoadFailed, Err: loadErr})
		return loadErr
	}

	c.loaded = true
	zlog.Debug().Msgf("playback: track loaded: index=%d title=%s uri=%s nominal=%.1fs",
		index, t.Title, t.AudioURI, t.Duration)
	c.sendEventLocked(Event{Type: EventTrackChanged})
	return nil
}

// playLocked must be called with lock held.
func (c *Controller) playLocked() error {
	if !c.loaded {
		return errors.Wrapf(ErrLoadFailed, "track %d is not loaded", c.current)
	}
	if c.state == StatePlaying {
		return nil
	}
	if err := c.media.Play(); err != nil {
		return errors.Wrapf(err, "failed to play track %d", c.current)
	}
	c.state = StatePlaying
	c.sendEventLocked(Event{Type: EventStateChanged})
	return nil
}

// pauseLocked must be called with lock held.
func (c *Controller) pauseLocked() error {
	if c.state == StatePaused {
		return nil
	}
	if err := c.media.Pause(); err != nil {
		return errors.Wrapf(err, "failed to pause track %d", c.current)
	}
	c.state = StatePaused
	c.sendEventLocked(Event{Type: EventStateChanged})
	return nil
}

func (c *Controller) invalidIndex(index int) error {
	return errors.Wrapf(ErrInvalidIndex, "index %d not in [0, %d)", index, c.album.Len())
}

func (c *Controller) onProgress(n media.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale(n) {
		return
	}
	c.elapsed = sanitizeSeconds(n.Value)
	c.sendEventLocked(Event{Type: EventProgress})
}

func (c *Controller) onDurationKnown(n media.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale(n) {
		return
	}
	c.duration = sanitizeSeconds(n.Value)
	zlog.Debug().Msgf("playback: duration known: track=%d duration=%.3fs", c.current, c.duration)
	c.sendEventLocked(Event{Type: EventDurationChanged})
}

func (c *Controller) onEnded(n media.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale(n) {
		return
	}
	c.elapsed = sanitizeSeconds(n.Value)
	if c.state == StatePlaying {
		c.state = StatePaused
		zlog.Debug().Msgf("playback: track ended: track=%d", c.current)
		c.sendEventLocked(Event{Type: EventStateChanged})
	}
}

// stale reports whether n must be ignored: it was emitted for a source
// loaded before the current one, or after Close.
// Must be called with lock held.
func (c *Controller) stale(n media.Notification) bool {
	return c.closed || n.Generation != c.gen
}

func (c *Controller) snapshotLocked() Snapshot {
	durationText := TimePlaceholder
	if knownDuration(c.duration) {
		durationText = FormatTime(c.duration)
	}
	return Snapshot{
		AlbumSlug:    c.album.Slug,
		CurrentIndex: c.current,
		Track:        c.album.Tracks[c.current],
		State:        c.state,
		Elapsed:      c.elapsed,
		Duration:     c.duration,
		HoveredIndex: c.hovered,
		ElapsedText:  FormatTime(c.elapsed),
		DurationText: durationText,
	}
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	e.Snapshot = c.snapshotLocked()
	select {
	case c.eventCh <- e:
	default:
		// Channel full, drop event
	}
}
