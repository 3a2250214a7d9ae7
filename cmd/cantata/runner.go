package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"cantata/internal/config"
	"cantata/internal/database"
	"cantata/internal/importer"
	"cantata/internal/metadata"
	"cantata/internal/watcher"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for
// each command action.
type Runner struct {
	logger *logrus.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger *logrus.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided options
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		importCommand, exportCommand, showCommand, playlistsCommand, watchCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// open loads configuration and the library store for a command invocation.
func (r *Runner) open(cmd *cli.Command) (*config.Config, *database.Database, error) {
	cfg, err := config.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := applyLogConfig(r.logger, cfg); err != nil {
		return nil, nil, err
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open library database: %w", err)
	}

	return cfg, db, nil
}

func applyLogConfig(logger *logrus.Logger, cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}

// Import parses an M3U file and resolves it into a new playlist.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: cantata import <playlist.m3u>")
	}

	cfg, db, err := r.open(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	name := cmd.String("name")
	if name == "" {
		name = playlistNameFromPath(path)
	}

	prober := metadata.NewProber(cfg.Library.SupportedFormats)
	im := importer.NewImporter(db, prober, cfg.Import.ProbeFiles)

	report, err := im.ImportFile(name, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(r.output, "Import %s: playlist %d, %d/%d entries resolved\n",
		report.ID, report.PlaylistID, report.Resolved, report.Total)
	for _, weak := range report.Weak {
		fmt.Fprintf(r.output, "  weak match: %s -> track %d (%d candidates)\n",
			weak.Path, weak.TrackID, weak.Candidates)
	}
	for _, miss := range report.Unresolved {
		fmt.Fprintf(r.output, "  unresolved: %s\n", miss.Path)
	}

	return nil
}

// Export writes a playlist as extended M3U.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	_, db, err := r.open(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	out := r.output
	if path := cmd.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	return importer.Export(db, cmd.Int64("id"), out)
}

// Show prints a playlist's materialized playback sequence.
func (r *Runner) Show(ctx context.Context, cmd *cli.Command) error {
	_, db, err := r.open(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.MaterializePlaylist(cmd.Int64("id"))
	if err != nil {
		return err
	}

	for i, rec := range records {
		fmt.Fprintf(r.output, "%3d. %s - %s [%s] (%ds) %s\n",
			i+1, rec.TrackArtistNames, rec.TrackTitle, rec.AlbumTitle, rec.Duration, rec.Location)
	}
	return nil
}

// Playlists lists all playlists with item counts.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	_, db, err := r.open(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	playlists, err := db.GetAllPlaylists()
	if err != nil {
		return err
	}

	for _, p := range playlists {
		fmt.Fprintf(r.output, "%4d  %-32s %d tracks\n", p.ID, p.Name, p.TrackCount)
	}
	return nil
}

// Watch runs the library change watcher until interrupted.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	cfg, db, err := r.open(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, root := range cfg.Library.Paths {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			return fmt.Errorf("library path does not exist: %s", root)
		}
	}

	prober := metadata.NewProber(cfg.Library.SupportedFormats)
	w := watcher.NewWatcher(db, prober, cfg.Library.Paths)
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	// Wait for shutdown signal
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case <-c:
	case <-ctx.Done():
	}

	r.logger.Info("Received shutdown signal")
	return nil
}
