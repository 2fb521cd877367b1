// Package main provides the trackdeck player entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/trackdeck/internal/app/console"
	"github.com/osa030/trackdeck/internal/app/playback"
	"github.com/osa030/trackdeck/internal/domain/album"
	"github.com/osa030/trackdeck/internal/infra/audio"
	"github.com/osa030/trackdeck/internal/infra/catalog"
	"github.com/osa030/trackdeck/internal/infra/config"
	"github.com/osa030/trackdeck/internal/infra/logger"
)

var (
	app        = kingpin.New("trackdeck", "Single-album track player")
	configPath = app.Flag("config", "Path to config file").Default("config/player.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: from config)").String()

	// albums command
	albumsCmd = app.Command("albums", "List albums in the catalog and exit")

	// tracks command
	tracksCmd  = app.Command("tracks", "List the tracks of an album and exit")
	tracksSlug = tracksCmd.Arg("slug", "Album slug").Required().String()

	// play command (default)
	playCmd  = app.Command("play", "Play an album interactively (default)").Default()
	playSlug = playCmd.Arg("slug", "Album slug (default: first album)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	// Initialize logger, command-line flags take precedence
	loggerConfig := logger.Config{
		Output: cfg.Log.Output,
		Level:  cfg.Log.Level,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	if err := run(command, cfg); err != nil {
		zlog.Error().Msgf("trackdeck: %v", err)
		_ = closeLog()
		os.Exit(1)
	}
	_ = closeLog()
}

// run executes the selected command. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(command string, cfg *config.Config) error {
	zlog.Debug().Msgf("Loading catalog from %s", cfg.Catalog.Path)
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	switch command {
	case albumsCmd.FullCommand():
		printAlbums(cat.Albums())
		return nil
	case tracksCmd.FullCommand():
		alb, err := cat.FindAlbum(*tracksSlug)
		if err != nil {
			return err
		}
		printTracks(alb)
		return nil
	default:
		return play(cfg, cat, *playSlug)
	}
}

// play runs the interactive console until quit, end of input or a signal.
func play(cfg *config.Config, cat *catalog.Catalog, slug string) error {
	if slug == "" {
		albums := cat.Albums()
		slug = albums[0].Slug
	}
	alb, err := cat.FindAlbum(slug)
	if err != nil {
		return err
	}

	res, err := audio.NewResourceFromConfig(cfg.Media)
	if err != nil {
		return fmt.Errorf("failed to create media backend: %w", err)
	}

	ctrl, err := playback.NewController(alb, res, playback.Config{
		InitialVolume: cfg.Player.InitialVolume,
		EventBuffer:   cfg.Player.EventBuffer,
	})
	if err != nil {
		_ = res.Close()
		return fmt.Errorf("failed to create controller: %w", err)
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			zlog.Error().Msgf("Failed to close controller: %v", err)
		}
	}()

	zlog.Info().Msgf("Playing album: slug=%s title=%s tracks=%d backend=%s",
		alb.Slug, alb.Title, alb.Len(), cfg.Media.Backend)

	con := console.New(ctrl, alb, os.Stdout)
	con.PrintAlbum()
	con.PrintPlayer()

	// Event loop ends when Close closes the channel
	go func() {
		for e := range ctrl.Events() {
			zlog.Debug().Msgf("Event: type=%s track=%d state=%s elapsed=%s duration=%s",
				e.Type, e.Snapshot.CurrentIndex, e.Snapshot.State, e.Snapshot.ElapsedText, e.Snapshot.DurationText)
			con.PrintEvent(e)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := con.Run(ctx, os.Stdin); err != nil {
		return fmt.Errorf("console error: %w", err)
	}
	zlog.Info().Msg("Player stopped")
	return nil
}

// printAlbums prints the catalog.
func printAlbums(albums []album.Album) {
	fmt.Println("Albums:")
	for _, a := range albums {
		fmt.Printf("  %-24s - %s / %s (%d tracks)\n", a.Slug, a.Title, a.Artist, a.Len())
	}
}

// printTracks prints the track list of alb.
func printTracks(alb *album.Album) {
	fmt.Printf("%s - %s\n", alb.Title, alb.Artist)
	if alb.ReleaseInfo != "" {
		fmt.Println(alb.ReleaseInfo)
	}
	for i, t := range alb.Tracks {
		fmt.Printf("  %2d  %-32s %s\n", i+1, t.Title, playback.FormatTime(t.Duration))
	}
	fmt.Printf("Total: %s\n", playback.FormatTime(alb.TotalDuration()))
}
