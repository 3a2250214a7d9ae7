// Package importer turns parsed playlist files into library playlists,
// resolving each entry against the store and reporting what could not be
// matched so the caller can offer relinking.
package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cantata/internal/database"
	"cantata/internal/m3u"
	"cantata/internal/metadata"
	"cantata/internal/resolver"
	"cantata/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Importer orchestrates playlist import: normalize, enrich, resolve, append.
type Importer struct {
	db         *database.Database
	res        *resolver.Resolver
	prober     *metadata.Prober
	logger     *logrus.Logger
	probeFiles bool
}

// NewImporter creates an importer. When probeFiles is true, entries whose
// path still exists on disk get their missing hints filled from the file's
// tags before resolution, which recovers matches for relocated files the
// playlist-author's tagger never described.
func NewImporter(db *database.Database, prober *metadata.Prober, probeFiles bool) *Importer {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Importer{
		db:         db,
		res:        resolver.New(db),
		prober:     prober,
		logger:     logger,
		probeFiles: probeFiles,
	}
}

// UnresolvedEntry is an entry no tier could match, kept whole for
// user-directed relinking or removal.
type UnresolvedEntry struct {
	Path  string
	Entry m3u.Entry
}

// WeakMatch records a heuristic hit that had competing candidates.
type WeakMatch struct {
	Path       string
	TrackID    int64
	Candidates int
}

// Report summarizes one import run.
type Report struct {
	ID         string
	PlaylistID int64
	Total      int
	Resolved   int
	Weak       []WeakMatch
	Unresolved []UnresolvedEntry
}

// ImportFile parses an M3U-family file and imports it as a new playlist
// named name. Relative entry paths resolve against the playlist's directory.
func (im *Importer) ImportFile(name, playlistPath string) (*Report, error) {
	f, err := os.Open(playlistPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist file: %w", err)
	}
	defer f.Close()

	entries, err := m3u.Parse(f)
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(playlistPath)
	return im.Import(name, baseDir, entries)
}

// Import creates a new playlist and resolves entries into it in file order.
// Unresolved entries are collected, never guessed at; a storage failure
// aborts the run.
func (im *Importer) Import(name, baseDir string, entries []m3u.Entry) (*Report, error) {
	playlistID, err := im.db.CreatePlaylist(name, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	report := &Report{
		ID:         uuid.NewString(),
		PlaylistID: playlistID,
		Total:      len(entries),
	}

	for _, entry := range entries {
		desc := im.descriptor(entry, baseDir)

		res, err := im.res.Resolve(desc)
		if err != nil {
			if errors.Is(err, resolver.ErrNotFound) {
				im.logger.WithFields(logrus.Fields{
					"path":      desc.Path,
					"import_id": report.ID,
				}).Warn("Playlist entry did not resolve")
				report.Unresolved = append(report.Unresolved, UnresolvedEntry{Path: desc.Path, Entry: entry})
				continue
			}
			return nil, fmt.Errorf("failed to resolve %s: %w", desc.Path, err)
		}

		if err := im.db.AddTrackToPlaylist(playlistID, res.TrackID); err != nil {
			return nil, fmt.Errorf("failed to append track %d: %w", res.TrackID, err)
		}
		report.Resolved++

		if res.Ambiguous {
			report.Weak = append(report.Weak, WeakMatch{
				Path:       desc.Path,
				TrackID:    res.TrackID,
				Candidates: res.Candidates,
			})
		}
	}

	im.logger.WithFields(logrus.Fields{
		"import_id":   report.ID,
		"playlist_id": playlistID,
		"resolved":    report.Resolved,
		"unresolved":  len(report.Unresolved),
		"weak":        len(report.Weak),
	}).Info("Playlist import finished")

	return report, nil
}

// descriptor normalizes an entry into a resolver descriptor: absolute
// cleaned path, a filename-stem search hint when the entry carried no
// title, and (optionally) hints filled from the on-disk file's tags.
func (im *Importer) descriptor(entry m3u.Entry, baseDir string) models.EntryDescriptor {
	path := entry.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	path = filepath.Clean(path)

	desc := models.EntryDescriptor{Path: path}
	if entry.Title != "" {
		desc.Title = &entry.Title
	}
	if entry.TrackArtists != "" {
		desc.TrackArtists = &entry.TrackArtists
	}
	if entry.AlbumTitle != "" {
		desc.AlbumTitle = &entry.AlbumTitle
	}
	if entry.AlbumArtist != "" {
		desc.AlbumArtist = &entry.AlbumArtist
	}
	if entry.HasDuration() {
		dur := entry.Duration
		desc.DurationSeconds = &dur
	}
	if desc.Title == nil {
		hint := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		desc.SearchHint = &hint
	}

	if im.probeFiles && im.prober != nil && im.prober.IsAudioFile(path) {
		if _, err := os.Stat(path); err == nil {
			im.enrich(&desc, path)
		}
	}

	return desc
}

// enrich fills absent descriptor hints from the file's own tags. Existing
// hints from the playlist are never overwritten.
func (im *Importer) enrich(desc *models.EntryDescriptor, path string) {
	info, err := im.prober.Probe(path)
	if err != nil {
		im.logger.WithError(err).WithField("path", path).Debug("Probe failed during import enrichment")
		return
	}

	if desc.Title == nil && info.Title != "" {
		title := info.Title
		desc.Title = &title
	}
	if desc.TrackArtists == nil && info.Artist != "" {
		artists := info.Artist
		desc.TrackArtists = &artists
	}
	if desc.AlbumTitle == nil && info.Album != "" {
		album := info.Album
		desc.AlbumTitle = &album
	}
	if desc.AlbumArtist == nil && info.AlbumArtist != "" {
		albumArtist := info.AlbumArtist
		desc.AlbumArtist = &albumArtist
	}
	if desc.DurationSeconds == nil && info.Duration > 0 {
		dur := info.Duration
		desc.DurationSeconds = &dur
	}
}

// Export writes a playlist as extended M3U to w, in stored order.
func Export(db *database.Database, playlistID int64, w io.Writer) error {
	records, err := db.MaterializePlaylist(playlistID)
	if err != nil {
		return err
	}

	entries := make([]m3u.Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, m3u.Entry{
			Path:         r.Location,
			Title:        r.TrackTitle,
			TrackArtists: r.TrackArtistNames,
			AlbumTitle:   r.AlbumTitle,
			AlbumArtist:  r.ArtistName,
			Duration:     r.Duration,
		})
	}

	return m3u.Write(w, entries)
}
