package resolver

import (
	"errors"
	"path/filepath"
	"testing"

	"cantata/internal/database"
	"cantata/pkg/models"
)

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }

func newTestLibrary(t *testing.T) (*database.Database, map[string]int64) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "library.db")
	db, err := database.NewDatabase(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ids := make(map[string]int64)
	seed := func(artist, album, title, location string, duration int) {
		artistID, err := db.GetOrCreateArtist(artist, "")
		if err != nil {
			t.Fatalf("Failed to upsert artist: %v", err)
		}
		albumID, err := db.GetOrCreateAlbum(album, artistID, filepath.Dir(location))
		if err != nil {
			t.Fatalf("Failed to upsert album: %v", err)
		}
		id, err := db.InsertTrack(models.Track{
			Title:       title,
			AlbumID:     albumID,
			ArtistNames: artist,
			Location:    location,
			Duration:    duration,
		})
		if err != nil {
			t.Fatalf("Failed to insert track: %v", err)
		}
		ids[title+"|"+location] = id
	}

	seed("Art", "Alb", "Song", "/music/a.flac", 200)
	seed("Art", "Alb", "Ballad", "/music/b.flac", 180)
	seed("Other Artist", "Elsewhere", "Song", "/music/other/song.flac", 200)

	return db, ids
}

func TestExactLocationMatchIsAuthoritative(t *testing.T) {
	db, ids := newTestLibrary(t)
	r := New(db)

	// Every metadata hint contradicts the stored track; the literal path
	// hit must still win
	res, err := r.Resolve(models.EntryDescriptor{
		Path:            "/music/a.flac",
		Title:           strPtr("Completely Wrong Title"),
		AlbumArtist:     strPtr("Nobody"),
		AlbumTitle:      strPtr("No Album"),
		DurationSeconds: intPtr(1),
	})
	if err != nil {
		t.Fatalf("Expected exact match, got error: %v", err)
	}
	if res.Tier != TierLocation {
		t.Errorf("Expected tier location, got %s", res.Tier)
	}
	if res.TrackID != ids["Song|/music/a.flac"] {
		t.Errorf("Expected track %d, got %d", ids["Song|/music/a.flac"], res.TrackID)
	}
	if res.Ambiguous {
		t.Error("Exact matches are never ambiguous")
	}
}

func TestBarePathReportsNotFound(t *testing.T) {
	db, _ := newTestLibrary(t)
	r := New(db)

	// No usable metadata beyond a dead path: never guess
	_, err := r.Resolve(models.EntryDescriptor{Path: "/gone/nowhere.flac"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	// A search hint alone is not enough either
	_, err = r.Resolve(models.EntryDescriptor{
		Path:       "/gone/nowhere.flac",
		SearchHint: strPtr("a"),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for hint-only descriptor, got %v", err)
	}
}

func TestHeuristicFallback(t *testing.T) {
	db, ids := newTestLibrary(t)
	r := New(db)

	res, err := r.Resolve(models.EntryDescriptor{
		Path:            "/music/missing.flac",
		Title:           strPtr("Ballad"),
		AlbumArtist:     strPtr("Art"),
		DurationSeconds: intPtr(180),
	})
	if err != nil {
		t.Fatalf("Expected heuristic match, got error: %v", err)
	}
	if res.Tier != TierHeuristic {
		t.Errorf("Expected tier heuristic, got %s", res.Tier)
	}
	if res.TrackID != ids["Ballad|/music/b.flac"] {
		t.Errorf("Expected track %d, got %d", ids["Ballad|/music/b.flac"], res.TrackID)
	}
}

func TestDurationBoundary(t *testing.T) {
	db, _ := newTestLibrary(t)
	r := New(db)

	t.Run("EqualDurationMatches", func(t *testing.T) {
		res, err := r.Resolve(models.EntryDescriptor{
			Path:            "/music/missing.flac",
			Title:           strPtr("Ballad"),
			DurationSeconds: intPtr(180),
		})
		if err != nil {
			t.Fatalf("Expected match at equal duration, got %v", err)
		}
		if res.Tier != TierHeuristic {
			t.Errorf("Expected tier heuristic, got %s", res.Tier)
		}
	})

	t.Run("OneSecondApartDoesNotMatch", func(t *testing.T) {
		// Stored duration is 180; a hint of 179 is exactly one second
		// off, outside the open interval
		_, err := r.Resolve(models.EntryDescriptor{
			Path:            "/music/missing.flac",
			Title:           strPtr("Ballad"),
			DurationSeconds: intPtr(179),
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Expected ErrNotFound at the tolerance boundary, got %v", err)
		}
	})
}

func TestAmbiguousMatchPicksLowestID(t *testing.T) {
	db, ids := newTestLibrary(t)
	r := New(db)

	// "Song" exists under two different artists
	res, err := r.Resolve(models.EntryDescriptor{
		Path:  "/music/missing.flac",
		Title: strPtr("Song"),
	})
	if err != nil {
		t.Fatalf("Expected deterministic pick, got error: %v", err)
	}
	if !res.Ambiguous {
		t.Error("Expected ambiguity flag for competing candidates")
	}
	if res.Candidates != 2 {
		t.Errorf("Expected 2 candidates, got %d", res.Candidates)
	}
	if res.TrackID != ids["Song|/music/a.flac"] {
		t.Errorf("Expected lowest id %d, got %d", ids["Song|/music/a.flac"], res.TrackID)
	}
}

func TestSearchHintRecoversByFilename(t *testing.T) {
	db, ids := newTestLibrary(t)
	r := New(db)

	// No title in the playlist entry; the filename fragment plus the
	// album hint narrows to a single track
	res, err := r.Resolve(models.EntryDescriptor{
		Path:       "/old/mount/song.flac",
		SearchHint: strPtr("other/song"),
		AlbumTitle: strPtr("Elsewhere"),
	})
	if err != nil {
		t.Fatalf("Expected hint-based match, got error: %v", err)
	}
	if res.TrackID != ids["Song|/music/other/song.flac"] {
		t.Errorf("Expected track %d, got %d", ids["Song|/music/other/song.flac"], res.TrackID)
	}
}

func TestTitleMismatchReportsNotFound(t *testing.T) {
	db, _ := newTestLibrary(t)
	r := New(db)

	_, err := r.Resolve(models.EntryDescriptor{
		Path:  "/x",
		Title: strPtr("Other"),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}
