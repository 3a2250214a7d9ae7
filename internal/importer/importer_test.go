package importer

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"cantata/internal/database"
	"cantata/internal/m3u"
	"cantata/pkg/models"
)

func newTestLibrary(t *testing.T) *database.Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "library.db")
	db, err := database.NewDatabase(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	seed := func(artist, album, title, location string, duration int) {
		artistID, err := db.GetOrCreateArtist(artist, "")
		if err != nil {
			t.Fatalf("Failed to upsert artist: %v", err)
		}
		albumID, err := db.GetOrCreateAlbum(album, artistID, filepath.Dir(location))
		if err != nil {
			t.Fatalf("Failed to upsert album: %v", err)
		}
		if _, err := db.InsertTrack(models.Track{
			Title:       title,
			AlbumID:     albumID,
			ArtistNames: artist,
			Location:    location,
			Folder:      filepath.Dir(location),
			Duration:    duration,
		}); err != nil {
			t.Fatalf("Failed to insert track: %v", err)
		}
	}

	seed("Art", "Alb", "Opener", "/lib/alb/opener.flac", 200)
	seed("Art", "Alb", "Closer", "/lib/alb/closer.flac", 260)

	return db
}

func TestImportResolvesAndReports(t *testing.T) {
	db := newTestLibrary(t)
	im := NewImporter(db, nil, false)

	playlist := strings.Join([]string{
		"#EXTM3U",
		// Exact location hit
		"/lib/alb/opener.flac",
		"",
		// Stale path recovered through metadata
		"#EXTINF:260,Art - Closer",
		"#EXTALB:Alb",
		"/old/mount/closer.flac",
		"",
		// Dead path with no usable metadata
		"/old/mount/vanished.flac",
	}, "\n")

	entries, err := m3u.Parse(strings.NewReader(playlist))
	if err != nil {
		t.Fatalf("Failed to parse playlist: %v", err)
	}

	report, err := im.Import("Road Trip", "/old/mount", entries)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if report.ID == "" {
		t.Error("Expected a report id")
	}
	if report.Total != 3 {
		t.Errorf("Expected 3 total entries, got %d", report.Total)
	}
	if report.Resolved != 2 {
		t.Errorf("Expected 2 resolved entries, got %d", report.Resolved)
	}
	if len(report.Unresolved) != 1 {
		t.Fatalf("Expected 1 unresolved entry, got %d", len(report.Unresolved))
	}
	if report.Unresolved[0].Path != "/old/mount/vanished.flac" {
		t.Errorf("Unexpected unresolved path %s", report.Unresolved[0].Path)
	}
	if len(report.Weak) != 0 {
		t.Errorf("Expected no weak matches, got %d", len(report.Weak))
	}

	// The playlist holds the resolved tracks in file order
	records, err := db.MaterializePlaylist(report.PlaylistID)
	if err != nil {
		t.Fatalf("Failed to materialize imported playlist: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].TrackTitle != "Opener" || records[1].TrackTitle != "Closer" {
		t.Errorf("Expected [Opener Closer], got [%s %s]", records[0].TrackTitle, records[1].TrackTitle)
	}
}

func TestImportRelativePaths(t *testing.T) {
	db := newTestLibrary(t)
	im := NewImporter(db, nil, false)

	// Relative entries resolve against the playlist's own directory,
	// which here lines up with the library layout
	entries := []m3u.Entry{
		{Path: "alb/opener.flac", Duration: -1},
	}

	report, err := im.Import("Relative", "/lib", entries)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if report.Resolved != 1 {
		t.Errorf("Expected relative path to resolve exactly, got %d resolved", report.Resolved)
	}
}

func TestExportWritesStoredOrder(t *testing.T) {
	db := newTestLibrary(t)

	playlistID, err := db.CreatePlaylist("Export Me", "")
	if err != nil {
		t.Fatalf("Failed to create playlist: %v", err)
	}
	for _, loc := range []string{"/lib/alb/closer.flac", "/lib/alb/opener.flac"} {
		id, err := db.TrackIDByLocation(loc)
		if err != nil {
			t.Fatalf("Failed to find seeded track: %v", err)
		}
		if err := db.AddTrackToPlaylist(playlistID, id); err != nil {
			t.Fatalf("Failed to add track: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := Export(db, playlistID, &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "#EXTM3U") {
		t.Error("Expected #EXTM3U header")
	}
	closerAt := strings.Index(out, "/lib/alb/closer.flac")
	openerAt := strings.Index(out, "/lib/alb/opener.flac")
	if closerAt == -1 || openerAt == -1 {
		t.Fatalf("Expected both locations in output:\n%s", out)
	}
	if closerAt > openerAt {
		t.Error("Expected stored order preserved in export")
	}
	if !strings.Contains(out, "#EXTINF:260,Art - Closer") {
		t.Errorf("Expected EXTINF line for Closer:\n%s", out)
	}
	if !strings.Contains(out, "#EXTALB:Alb") {
		t.Errorf("Expected EXTALB directive:\n%s", out)
	}
	if !strings.Contains(out, "#EXTART:Art") {
		t.Errorf("Expected EXTART directive:\n%s", out)
	}
}
