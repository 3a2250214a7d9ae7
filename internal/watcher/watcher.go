// Package watcher keeps the library store consistent with the filesystem
// between full scans: removed files have their track rows deleted (which
// fires the album_path cleanup trigger) and newly appeared files are probed
// and inserted.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cantata/internal/database"
	"cantata/internal/metadata"
	"cantata/pkg/models"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher monitors library roots for audio-file changes.
type Watcher struct {
	db      *database.Database
	prober  *metadata.Prober
	logger  *logrus.Logger
	watcher *fsnotify.Watcher
	roots   []string
	done    chan struct{}
}

// NewWatcher creates a watcher over the given library roots.
func NewWatcher(db *database.Database, prober *metadata.Prober, roots []string) *Watcher {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Watcher{
		db:     db,
		prober: prober,
		logger: logger,
		roots:  roots,
		done:   make(chan struct{}),
	}
}

// Start initializes the fsnotify watcher over every root, recursively.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	go w.watchFiles()

	for _, root := range w.roots {
		if err := w.addDirectoryToWatcher(root); err != nil {
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}
	}

	w.logger.WithField("roots", w.roots).Info("Library watcher started")
	return nil
}

// addDirectoryToWatcher recursively walks and adds subdirectories to watcher.
func (w *Watcher) addDirectoryToWatcher(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// watchFiles selects on watcher channels and dispatches events.
func (w *Watcher) watchFiles() {
	defer w.watcher.Close()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFileEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("Library watcher error")
		}
	}
}

// handleFileEvent applies filtering & delegates creation/removal actions.
func (w *Watcher) handleFileEvent(event fsnotify.Event) {
	// Ignore temporary files and hidden files
	fileName := filepath.Base(event.Name)
	if strings.HasPrefix(fileName, ".") || strings.HasSuffix(fileName, ".tmp") {
		return
	}

	isAudioFile := w.prober.IsAudioFile(event.Name)

	switch {
	case event.Has(fsnotify.Create) && isAudioFile:
		// Dispatch new file processing asynchronously
		go func(name string) {
			time.Sleep(500 * time.Millisecond) // Ensure file is fully written
			w.handleNewFile(name)
		}(event.Name)

	case event.Has(fsnotify.Remove) && isAudioFile:
		go w.handleRemovedFile(event.Name)

	case event.Has(fsnotify.Create):
		// Check if it's a new directory
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.watcher.Add(event.Name)
			w.logger.WithField("directory", event.Name).Info("Watching new directory")
		}
	}
}

// handleNewFile probes the file and inserts its artist/album/track rows.
func (w *Watcher) handleNewFile(filePath string) {
	exists, err := w.db.TrackExists(filePath)
	if err != nil {
		w.logger.WithError(err).WithField("file_path", filePath).Error("Error checking if track exists")
		return
	}
	if exists {
		w.logger.WithField("file_path", filePath).Debug("Track already in library")
		return
	}

	info, err := w.prober.Probe(filePath)
	if err != nil {
		w.logger.WithError(err).WithField("file_path", filePath).Error("Error probing new file")
		return
	}

	albumArtist := info.AlbumArtist
	if albumArtist == "" {
		albumArtist = info.Artist
	}
	if albumArtist == "" {
		albumArtist = "Unknown Artist"
	}
	album := info.Album
	if album == "" {
		album = "Unknown Album"
	}
	folder := filepath.Dir(filePath)

	artistID, err := w.db.GetOrCreateArtist(albumArtist, "")
	if err != nil {
		w.logger.WithError(err).WithField("artist", albumArtist).Error("Error upserting artist")
		return
	}
	albumID, err := w.db.GetOrCreateAlbum(album, artistID, folder)
	if err != nil {
		w.logger.WithError(err).WithField("album", album).Error("Error upserting album")
		return
	}

	id, err := w.db.InsertTrack(models.Track{
		Title:       info.Title,
		AlbumID:     albumID,
		ArtistNames: info.Artist,
		Location:    filePath,
		Folder:      folder,
		DiscNumber:  info.DiscNumber,
		TrackNumber: info.TrackNumber,
		Duration:    info.Duration,
		Genre:       info.Genre,
	})
	if err != nil {
		w.logger.WithError(err).Error("Error inserting new track")
		return
	}

	w.logger.WithFields(logrus.Fields{
		"artist": info.Artist,
		"title":  info.Title,
		"album":  album,
		"id":     id,
	}).Info("Added new track")
}

// handleRemovedFile deletes the track row for a removed file; the album_path
// cleanup rides the same statement via the store trigger.
func (w *Watcher) handleRemovedFile(filePath string) {
	if err := w.db.RemoveTrackByLocation(filePath); err != nil {
		w.logger.WithError(err).WithField("file_path", filePath).Error("Error removing track")
		return
	}

	w.logger.WithField("file_path", filePath).Info("Removed track for deleted file")
}

// Stop closes the watcher (idempotent).
func (w *Watcher) Stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
}
