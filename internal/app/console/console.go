// Package console provides a line-oriented view of a playback controller.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/trackdeck/internal/app/playback"
	"github.com/osa030/trackdeck/internal/domain/album"
)

// Errors
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidArgs    = errors.New("invalid arguments")
)

// Player is the part of the controller the console drives.
type Player interface {
	Snapshot() playback.Snapshot
	Play() error
	Pause() error
	ToggleTrack(index int) error
	Previous() error
	Next() error
	Seek(fraction float64) error
	SetVolume(level float64) error
	HoverEnter(index int) error
	HoverLeave(index int)
	RowIndicator(index int) playback.Indicator
}

var _ Player = (*playback.Controller)(nil)

// Console interprets commands against a controller and renders its state.
// Row numbers typed by the user are 1-based.
type Console struct {
	player Player
	album  albumView

	mu  sync.Mutex // Serializes writes from Run and PrintEvent
	out io.Writer
}

// albumView is the static part of the album shown in the header and rows.
type albumView struct {
	title       string
	artist      string
	releaseInfo string
	rows        []rowView
}

type rowView struct {
	title    string
	duration float64
}

// New creates a console for player showing alb, writing to out.
func New(player Player, alb *album.Album, out io.Writer) *Console {
	view := albumView{
		title:       alb.Title,
		artist:      alb.Artist,
		releaseInfo: alb.ReleaseInfo,
	}
	for _, t := range alb.Tracks {
		view.rows = append(view.rows, rowView{title: t.Title, duration: t.Duration})
	}
	return &Console{player: player, album: view, out: out}
}

// Run executes lines read from in until quit, end of input or ctx is done.
// Command errors are printed and do not stop the loop.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return errors.Wrap(err, "failed to read input")
					}
				default:
				}
				return nil
			}

			quit, err := c.Execute(line)
			if err != nil {
				zlog.Debug().Msgf("console: command failed: line=%q: %v", line, err)
				c.printf("error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// Execute runs a single command line. It reports whether the user asked to
// quit.
func (c *Console) Execute(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch name {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		c.PrintHelp()
		return false, nil
	case "status":
		c.PrintPlayer()
		return false, nil
	case "list", "ls":
		c.PrintAlbum()
		return false, nil
	case "play":
		err = c.player.Play()
	case "pause":
		err = c.player.Pause()
	case "next":
		err = c.player.Next()
	case "prev", "previous":
		err = c.player.Previous()
	case "toggle":
		var index int
		if index, err = rowArg(args); err == nil {
			err = c.player.ToggleTrack(index)
		}
	case "seek":
		var fraction float64
		if fraction, err = floatArg(args); err == nil {
			err = c.player.Seek(fraction)
		}
	case "vol", "volume":
		var level float64
		if level, err = floatArg(args); err == nil {
			err = c.player.SetVolume(level)
		}
	case "hover":
		var index int
		if index, err = rowArg(args); err == nil {
			if err = c.player.HoverEnter(index); err == nil {
				c.PrintRows()
			}
			return false, err
		}
	case "leave":
		var index int
		if index, err = rowArg(args); err == nil {
			c.player.HoverLeave(index)
			c.PrintRows()
			return false, nil
		}
	default:
		return false, errors.Wrapf(ErrUnknownCommand, "%q", name)
	}

	if err != nil {
		return false, err
	}
	c.PrintPlayer()
	return false, nil
}

// PrintAlbum renders the album header and every track row.
func (c *Console) PrintAlbum() {
	c.printf("%s - %s\n", c.album.title, c.album.artist)
	if c.album.releaseInfo != "" {
		c.printf("%s\n", c.album.releaseInfo)
	}
	c.PrintRows()
}

// PrintRows renders one line per track: indicator, title and nominal
// duration.
func (c *Console) PrintRows() {
	for i, row := range c.album.rows {
		c.printf("%10s  %-32s %s\n", c.player.RowIndicator(i), row.title, playback.FormatTime(row.duration))
	}
}

// PrintPlayer renders the player bar.
func (c *Console) PrintPlayer() {
	s := c.player.Snapshot()
	c.printf("[%s] %s  %s / %s\n", s.State, s.Track.Title, s.ElapsedText, s.DurationText)
}

// PrintHelp lists the available commands.
func (c *Console) PrintHelp() {
	c.printf("%s", helpText)
}

// PrintEvent renders the events the user did not trigger. Only a track
// running to its end qualifies; command results are printed by Execute.
func (c *Console) PrintEvent(e playback.Event) {
	s := e.Snapshot
	if e.Type != playback.EventStateChanged || s.IsPlaying() || s.Progress() < 1 {
		return
	}
	c.printf("ended: %s  %s / %s\n", s.Track.Title, s.ElapsedText, s.DurationText)
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

const helpText = `commands:
  play | pause        resume or pause the current track
  toggle N            play/pause row N, or switch to it
  next | prev         move to the adjacent track and play
  seek F              jump to fraction F (0..1) of the track
  vol F               set volume (0..1)
  hover N | leave N   hover or un-hover row N
  status | list       show the player bar or the track list
  quit
`

// rowArg parses a single 1-based row number into a 0-based index.
func rowArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.Wrap(ErrInvalidArgs, "expected a row number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidArgs, "row %q is not a number", args[0])
	}
	return n - 1, nil
}

func floatArg(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, errors.Wrap(ErrInvalidArgs, "expected a number")
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidArgs, "%q is not a number", args[0])
	}
	return v, nil
}
