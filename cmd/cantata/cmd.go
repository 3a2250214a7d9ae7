// submodule cmd contains command definitions
package main

import (
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// importCommand resolves an M3U-family playlist into the library
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import an M3U playlist, resolving entries against the library",
		ArgsUsage: "<playlist.m3u>",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Playlist name (defaults to the file name)",
			},
		},
		Action: r.Import,
	}
}

// exportCommand writes a playlist back out as extended M3U
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export a playlist as extended M3U",
		Flags: []cli.Flag{
			configFlag(),
			&cli.Int64Flag{
				Name:     "id",
				Usage:    "Playlist ID to export",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (defaults to stdout)",
			},
		},
		Action: r.Export,
	}
}

// showCommand prints the materialized playback sequence
func showCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print a playlist's playback sequence in stored order",
		Flags: []cli.Flag{
			configFlag(),
			&cli.Int64Flag{
				Name:     "id",
				Usage:    "Playlist ID to show",
				Required: true,
			},
		},
		Action: r.Show,
	}
}

// playlistsCommand lists playlists
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"ls"},
		Usage:   "List playlists",
		Flags:   []cli.Flag{configFlag()},
		Action:  r.Playlists,
	}
}

// watchCommand runs the filesystem watcher
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "watch",
		Usage:  "Watch library paths and keep the store in sync",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Watch,
	}
}

func playlistNameFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
