package playback

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/trackdeck/internal/app/media"
	"github.com/osa030/trackdeck/internal/domain/album"
	"github.com/osa030/trackdeck/internal/domain/track"
)

// fakeResource records commands and emits notifications through a real hub.
type fakeResource struct {
	*media.Hub

	mu        sync.Mutex
	calls     []string
	uri       string
	position  float64
	duration  float64
	volume    float64
	failLoad  map[string]bool
	failPlay  bool
	unloads   int
	closes    int
	unloadErr error
}

var _ media.Resource = (*fakeResource)(nil)

func newFakeResource() *fakeResource {
	return &fakeResource{
		Hub:      media.NewHub(),
		duration: math.NaN(),
		failLoad: make(map[string]bool),
	}
}

func (f *fakeResource) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeResource) Load(uri string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("load:" + uri)
	f.Supersede()
	if f.failLoad[uri] {
		f.uri = ""
		return errors.Newf("cannot open %s", uri)
	}
	f.uri = uri
	f.position = 0
	return nil
}

func (f *fakeResource) Unload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("unload")
	f.Supersede()
	f.unloads++
	f.uri = ""
	return f.unloadErr
}

func (f *fakeResource) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("play")
	if f.failPlay {
		return errors.New("device busy")
	}
	return nil
}

func (f *fakeResource) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("pause")
	return nil
}

func (f *fakeResource) Seek(seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("seek:%g", seconds))
	f.position = seconds
	return nil
}

func (f *fakeResource) SetVolume(level float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("volume:%g", level))
	f.volume = level
	return nil
}

func (f *fakeResource) CurrentTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeResource) Duration() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *fakeResource) Close() error {
	f.mu.Lock()
	f.record("close")
	f.closes++
	f.mu.Unlock()
	f.Hub.Close()
	return nil
}

func (f *fakeResource) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeResource) resetHistory() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func testAlbum(n int) *album.Album {
	a := &album.Album{Slug: "the-colors", Title: "The Colors", Artist: "Pablo Picasso"}
	for i := 0; i < n; i++ {
		a.Tracks = append(a.Tracks, track.Track{
			Title:    fmt.Sprintf("Track %c", 'A'+i),
			AudioURI: fmt.Sprintf("assets/%c.wav", 'a'+i),
			Duration: float64(100 + i),
		})
	}
	return a
}

func newTestController(t *testing.T, n int) (*Controller, *fakeResource) {
	t.Helper()
	res := newFakeResource()
	c, err := NewController(testAlbum(n), res, Config{InitialVolume: 0.8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, res
}

func TestNewController_InitialState(t *testing.T) {
	c, res := newTestController(t, 3)

	s := c.Snapshot()
	assert.Equal(t, "the-colors", s.AlbumSlug)
	assert.Equal(t, 0, s.CurrentIndex)
	assert.Equal(t, "Track A", s.Track.Title)
	assert.Equal(t, StatePaused, s.State)
	assert.False(t, s.IsPlaying())
	assert.Equal(t, 0.0, s.Elapsed)
	assert.Equal(t, 100.0, s.Duration)
	assert.Equal(t, NoHover, s.HoveredIndex)
	assert.Equal(t, "00:00", s.ElapsedText)
	assert.Equal(t, "01:40", s.DurationText)

	assert.Equal(t, []string{"load:assets/a.wav", "volume:0.8"}, res.history())
	assert.Equal(t, 3, res.SubscriberCount())
}

func TestNewController_Errors(t *testing.T) {
	t.Run("nil album", func(t *testing.T) {
		_, err := NewController(nil, newFakeResource(), Config{})
		assert.ErrorIs(t, err, ErrEmptyAlbum)
	})

	t.Run("empty album", func(t *testing.T) {
		_, err := NewController(&album.Album{Slug: "empty"}, newFakeResource(), Config{})
		assert.ErrorIs(t, err, ErrEmptyAlbum)
	})

	t.Run("nil resource", func(t *testing.T) {
		_, err := NewController(testAlbum(1), nil, Config{})
		assert.Error(t, err)
	})

}

func TestNewController_FirstLoadFailureIsRecoverable(t *testing.T) {
	res := newFakeResource()
	res.failLoad["assets/a.wav"] = true

	c, err := NewController(testAlbum(2), res, Config{})
	require.NoError(t, err)
	defer c.Close()

	s := c.Snapshot()
	assert.Equal(t, 0, s.CurrentIndex)
	assert.Equal(t, StatePaused, s.State)
	assert.Equal(t, 3, res.SubscriberCount())

	ev := findEvent(t, c, EventLoadFailed)
	assert.ErrorIs(t, ev.Err, ErrLoadFailed)
	assert.ErrorIs(t, c.Play(), ErrLoadFailed)

	delete(res.failLoad, "assets/a.wav")
	require.NoError(t, c.ToggleTrack(0))
	assert.Equal(t, StatePlaying, c.Snapshot().State)
}

func TestNewController_FirstLoadFailureNextMovesOn(t *testing.T) {
	res := newFakeResource()
	res.failLoad["assets/a.wav"] = true

	c, err := NewController(testAlbum(3), res, Config{})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Next())
	s := c.Snapshot()
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, StatePlaying, s.State)
}

func TestController_SelectTrack(t *testing.T) {
	c, res := newTestController(t, 3)
	res.resetHistory()

	require.NoError(t, c.SelectTrack(2))

	s := c.Snapshot()
	assert.Equal(t, 2, s.CurrentIndex)
	assert.Equal(t, StatePaused, s.State, "selecting keeps the paused flag")
	assert.Equal(t, 102.0, s.Duration)
	assert.Equal(t, []string{"load:assets/c.wav"}, res.history())
}

func TestController_SelectTrack_KeepsPlaying(t *testing.T) {
	c, res := newTestController(t, 3)
	require.NoError(t, c.Play())
	res.resetHistory()

	require.NoError(t, c.SelectTrack(1))

	assert.Equal(t, StatePlaying, c.Snapshot().State)
	assert.Equal(t, []string{"load:assets/b.wav", "play"}, res.history())
}

func TestController_SelectTrack_SameIndexReloads(t *testing.T) {
	c, res := newTestController(t, 3)
	res.Emit(media.KindProgress, 42)
	require.Eventually(t, func() bool { return c.Snapshot().Elapsed == 42 }, time.Second, time.Millisecond)
	res.resetHistory()

	require.NoError(t, c.SelectTrack(0))

	assert.Equal(t, []string{"load:assets/a.wav"}, res.history())
	assert.Equal(t, 0.0, c.Snapshot().Elapsed)
}

func TestController_SelectTrack_InvalidIndex(t *testing.T) {
	c, res := newTestController(t, 3)
	res.resetHistory()

	for _, idx := range []int{-1, 3, 100} {
		err := c.SelectTrack(idx)
		assert.ErrorIs(t, err, ErrInvalidIndex, "index %d", idx)
	}

	assert.Equal(t, 0, c.Snapshot().CurrentIndex)
	assert.Empty(t, res.history())
}

func TestController_DurationKnownAfterSelect(t *testing.T) {
	c, res := newTestController(t, 4)

	for i := 0; i < 4; i++ {
		require.NoError(t, c.SelectTrack(i))
		want := float64(200 + i)
		res.Emit(media.KindDurationKnown, want)
		require.Eventually(t, func() bool {
			return c.Snapshot().Duration == want
		}, time.Second, time.Millisecond, "track %d", i)
	}
}

func TestController_PlayPauseIdempotent(t *testing.T) {
	c, res := newTestController(t, 2)
	res.resetHistory()

	require.NoError(t, c.Play())
	require.NoError(t, c.Play())
	assert.Equal(t, StatePlaying, c.Snapshot().State)

	require.NoError(t, c.Pause())
	require.NoError(t, c.Pause())
	assert.Equal(t, StatePaused, c.Snapshot().State)

	assert.Equal(t, []string{"play", "pause"}, res.history())
}

func TestController_PlayFailureStaysPaused(t *testing.T) {
	c, res := newTestController(t, 2)
	res.failPlay = true

	err := c.Play()
	require.Error(t, err)
	assert.Equal(t, StatePaused, c.Snapshot().State)
}

func TestController_ToggleTrack(t *testing.T) {
	t.Run("current track while playing pauses without reload", func(t *testing.T) {
		c, res := newTestController(t, 3)
		require.NoError(t, c.Play())
		res.resetHistory()

		require.NoError(t, c.ToggleTrack(0))

		assert.Equal(t, StatePaused, c.Snapshot().State)
		assert.Equal(t, []string{"pause"}, res.history())
	})

	t.Run("current track while paused plays", func(t *testing.T) {
		c, res := newTestController(t, 3)
		res.resetHistory()

		require.NoError(t, c.ToggleTrack(0))

		assert.Equal(t, StatePlaying, c.Snapshot().State)
		assert.Equal(t, []string{"play"}, res.history())
	})

	t.Run("other track while playing switches and plays", func(t *testing.T) {
		c, res := newTestController(t, 3)
		require.NoError(t, c.Play())
		res.resetHistory()

		require.NoError(t, c.ToggleTrack(2))

		s := c.Snapshot()
		assert.Equal(t, 2, s.CurrentIndex)
		assert.Equal(t, StatePlaying, s.State)
		assert.Equal(t, []string{"load:assets/c.wav", "play"}, res.history())
	})

	t.Run("other track while paused switches and plays", func(t *testing.T) {
		c, res := newTestController(t, 3)
		res.resetHistory()

		require.NoError(t, c.ToggleTrack(1))

		s := c.Snapshot()
		assert.Equal(t, 1, s.CurrentIndex)
		assert.Equal(t, StatePlaying, s.State)
		assert.Equal(t, []string{"load:assets/b.wav", "play"}, res.history())
	})

	t.Run("invalid index", func(t *testing.T) {
		c, _ := newTestController(t, 3)
		assert.ErrorIs(t, c.ToggleTrack(3), ErrInvalidIndex)
		assert.ErrorIs(t, c.ToggleTrack(-1), ErrInvalidIndex)
	})
}

func TestController_PreviousAtFirstTrack(t *testing.T) {
	c, res := newTestController(t, 3)
	res.resetHistory()

	require.NoError(t, c.Previous())

	s := c.Snapshot()
	assert.Equal(t, 0, s.CurrentIndex)
	assert.Equal(t, StatePlaying, s.State)
	assert.Equal(t, []string{"load:assets/a.wav", "play"}, res.history())
}

func TestController_NextAtLastTrack(t *testing.T) {
	c, res := newTestController(t, 2)
	require.NoError(t, c.SelectTrack(1))
	require.NoError(t, c.Play())
	res.resetHistory()

	require.NoError(t, c.Next())

	s := c.Snapshot()
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, StatePlaying, s.State)
	assert.Equal(t, []string{"load:assets/b.wav", "play"}, res.history(), "the last track restarts")
}

func TestController_NextBoundFollowsAlbumLength(t *testing.T) {
	c, _ := newTestController(t, 8)

	for i := 0; i < 20; i++ {
		require.NoError(t, c.Next())
	}
	assert.Equal(t, 7, c.Snapshot().CurrentIndex)
}

func TestController_NavigationScenario(t *testing.T) {
	c, _ := newTestController(t, 3)

	steps := []struct {
		op        func() error
		wantIndex int
	}{
		{c.Next, 1},
		{c.Next, 2},
		{c.Next, 2},
		{c.Previous, 1},
		{c.Previous, 0},
	}

	for i, step := range steps {
		require.NoError(t, step.op(), "step %d", i)
		s := c.Snapshot()
		assert.Equal(t, step.wantIndex, s.CurrentIndex, "step %d", i)
		assert.Equal(t, StatePlaying, s.State, "step %d", i)
	}
}

func TestController_Seek(t *testing.T) {
	tests := []struct {
		name        string
		duration    float64
		fraction    float64
		wantElapsed float64
		wantSeek    bool
	}{
		{
			name:        "half way",
			duration:    200,
			fraction:    0.5,
			wantElapsed: 100,
			wantSeek:    true,
		},
		{
			name:        "fraction above one is clamped",
			duration:    200,
			fraction:    1.5,
			wantElapsed: 200,
			wantSeek:    true,
		},
		{
			name:        "negative fraction is clamped",
			duration:    200,
			fraction:    -0.5,
			wantElapsed: 0,
			wantSeek:    true,
		},
		{
			name:        "NaN fraction seeks to start",
			duration:    200,
			fraction:    math.NaN(),
			wantElapsed: 0,
			wantSeek:    true,
		},
		{
			name:        "unknown duration is a no-op",
			duration:    0,
			fraction:    0.5,
			wantElapsed: 0,
			wantSeek:    false,
		},
		{
			name:        "NaN duration is a no-op",
			duration:    math.NaN(),
			fraction:    0.5,
			wantElapsed: 0,
			wantSeek:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, res := newTestController(t, 1)
			res.Emit(media.KindDurationKnown, tt.duration)
			want := sanitizeSeconds(tt.duration)
			require.Eventually(t, func() bool {
				return c.Snapshot().Duration == want
			}, time.Second, time.Millisecond)
			res.resetHistory()

			require.NoError(t, c.Seek(tt.fraction))

			assert.Equal(t, tt.wantElapsed, c.Snapshot().Elapsed)
			if tt.wantSeek {
				assert.Equal(t, []string{fmt.Sprintf("seek:%g", tt.wantElapsed)}, res.history())
			} else {
				assert.Empty(t, res.history())
			}
		})
	}
}

func TestController_SetVolume(t *testing.T) {
	c, res := newTestController(t, 1)
	res.resetHistory()

	require.NoError(t, c.SetVolume(0.3))
	require.NoError(t, c.SetVolume(2))
	require.NoError(t, c.SetVolume(-1))

	assert.Equal(t, []string{"volume:0.3", "volume:1", "volume:0"}, res.history())
}

func TestController_Hover(t *testing.T) {
	c, res := newTestController(t, 3)
	res.resetHistory()

	require.NoError(t, c.HoverEnter(2))
	assert.Equal(t, 2, c.Snapshot().HoveredIndex)

	c.HoverLeave(1)
	assert.Equal(t, 2, c.Snapshot().HoveredIndex, "leaving another row keeps the hover")

	c.HoverLeave(2)
	assert.Equal(t, NoHover, c.Snapshot().HoveredIndex)

	assert.ErrorIs(t, c.HoverEnter(5), ErrInvalidIndex)
	assert.Empty(t, res.history(), "hover has no playback side effects")
}

func TestController_RowIndicator(t *testing.T) {
	c, _ := newTestController(t, 5)

	assert.Equal(t, "play-icon", c.RowIndicator(0).String(), "current paused row")
	assert.Equal(t, Indicator{Kind: IndicatorNumber, Number: 4}, c.RowIndicator(3))

	require.NoError(t, c.Play())
	assert.Equal(t, "pause-icon", c.RowIndicator(0).String(), "current playing row")
	assert.Equal(t, "4", c.RowIndicator(3).String())

	require.NoError(t, c.HoverEnter(3))
	assert.Equal(t, "play-icon", c.RowIndicator(3).String(), "hovered other row")

	require.NoError(t, c.HoverEnter(0))
	assert.Equal(t, "pause-icon", c.RowIndicator(0).String(), "hovered playing row")
	assert.Equal(t, "4", c.RowIndicator(3).String())
}

func TestController_ProgressFolding(t *testing.T) {
	c, res := newTestController(t, 1)

	for _, v := range []float64{1, 2.5, 3, 7.25} {
		res.Emit(media.KindProgress, v)
	}
	require.Eventually(t, func() bool {
		return c.Snapshot().Elapsed == 7.25
	}, time.Second, time.Millisecond)

	res.Emit(media.KindProgress, math.NaN())
	require.Eventually(t, func() bool {
		return c.Snapshot().Elapsed == 0
	}, time.Second, time.Millisecond, "invalid progress is stored as 0")
}

func TestController_EndedPauses(t *testing.T) {
	c, res := newTestController(t, 1)
	require.NoError(t, c.Play())

	res.Emit(media.KindEnded, 100)

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.State == StatePaused && s.Elapsed == 100
	}, time.Second, time.Millisecond)
}

func TestController_IgnoresNotificationsFromPreviousTrack(t *testing.T) {
	c, res := newTestController(t, 3)
	require.NoError(t, c.Play())

	// The dispatcher takes the old track's notifications and blocks on the
	// controller lock while Next loads the following track.
	c.mu.Lock()
	res.Emit(media.KindProgress, 99)
	res.Emit(media.KindEnded, 100)
	time.Sleep(50 * time.Millisecond)
	err := c.navigateLocked(1)
	c.mu.Unlock()
	require.NoError(t, err)

	res.Emit(media.KindProgress, 7)
	require.Eventually(t, func() bool {
		return c.Snapshot().Elapsed == 7
	}, time.Second, time.Millisecond)

	s := c.Snapshot()
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, StatePlaying, s.State, "ended of the previous track is ignored")
	assert.Equal(t, 101.0, s.Duration)
	assert.Equal(t, "play", res.history()[len(res.history())-1])
}

func TestController_LoadFailure(t *testing.T) {
	c, res := newTestController(t, 3)
	require.NoError(t, c.Play())
	res.failLoad["assets/b.wav"] = true
	drain(c)

	err := c.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoadFailed)

	s := c.Snapshot()
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, StatePaused, s.State)

	ev := findEvent(t, c, EventLoadFailed)
	assert.ErrorIs(t, ev.Err, ErrLoadFailed)

	assert.ErrorIs(t, c.Play(), ErrLoadFailed, "play refused until a load succeeds")

	// Clicking the row again retries the load.
	delete(res.failLoad, "assets/b.wav")
	require.NoError(t, c.ToggleTrack(1))
	assert.Equal(t, StatePlaying, c.Snapshot().State)
}

func TestController_Events(t *testing.T) {
	c, _ := newTestController(t, 2)
	drain(c)

	require.NoError(t, c.ToggleTrack(1))

	ev := findEvent(t, c, EventTrackChanged)
	assert.Equal(t, 1, ev.Snapshot.CurrentIndex)
	ev = findEvent(t, c, EventStateChanged)
	assert.Equal(t, StatePlaying, ev.Snapshot.State)
}

func TestController_EventsDropWhenFull(t *testing.T) {
	res := newFakeResource()
	c, err := NewController(testAlbum(2), res, Config{EventBuffer: 1})
	require.NoError(t, err)
	defer c.Close()

	assert.NotPanics(t, func() {
		for i := 0; i < 10; i++ {
			_ = c.Next()
			_ = c.Previous()
		}
	})
}

func TestController_Close(t *testing.T) {
	c, res := newTestController(t, 2)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, 1, res.unloads)
	assert.Equal(t, 1, res.closes)
	assert.Equal(t, 0, res.SubscriberCount())

	_, ok := <-drainUntilClosed(c)
	assert.False(t, ok, "event channel closed")

	assert.ErrorIs(t, c.Play(), ErrClosed)
	assert.ErrorIs(t, c.SelectTrack(0), ErrClosed)
	assert.ErrorIs(t, c.Next(), ErrClosed)
	assert.ErrorIs(t, c.Seek(0.5), ErrClosed)
	assert.NotPanics(t, func() { c.HoverLeave(0) })
}

func TestController_CloseReportsUnloadError(t *testing.T) {
	res := newFakeResource()
	res.unloadErr = errors.New("source busy")
	c, err := NewController(testAlbum(1), res, Config{})
	require.NoError(t, err)

	err = c.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source busy")
	assert.Equal(t, 1, res.closes)
}

func drain(c *Controller) {
	for {
		select {
		case <-c.Events():
		default:
			return
		}
	}
}

func drainUntilClosed(c *Controller) <-chan Event {
	for range c.Events() {
	}
	return c.Events()
}

func findEvent(t *testing.T, c *Controller, typ EventType) Event {
	t.Helper()
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				t.Fatalf("event channel closed before %s", typ)
			}
			if ev.Type == typ {
				return ev
			}
		default:
			t.Fatalf("no %s event", typ)
		}
	}
}
