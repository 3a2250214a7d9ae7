package m3u

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseExtended(t *testing.T) {
	input := strings.Join([]string{
		"#EXTM3U",
		"#EXTINF:200,Art - Song",
		"#EXTALB:Alb",
		"#EXTART:Art",
		"/music/a.flac",
		"",
		"#EXTINF:-1,Untimed",
		"/music/untimed.flac",
		"",
		"/music/plain.flac",
	}, "\n")

	entries, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Failed to parse playlist: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Path != "/music/a.flac" {
		t.Errorf("Unexpected path %s", first.Path)
	}
	if first.Title != "Song" || first.TrackArtists != "Art" {
		t.Errorf("Expected Art/Song, got %s/%s", first.TrackArtists, first.Title)
	}
	if first.AlbumTitle != "Alb" || first.AlbumArtist != "Art" {
		t.Errorf("Expected album directives parsed, got %s/%s", first.AlbumTitle, first.AlbumArtist)
	}
	if !first.HasDuration() || first.Duration != 200 {
		t.Errorf("Expected duration 200, got %d", first.Duration)
	}

	second := entries[1]
	if second.HasDuration() {
		t.Errorf("Expected -1 duration treated as absent, got %d", second.Duration)
	}
	if second.Title != "Untimed" {
		t.Errorf("Expected title without artist separator, got %q", second.Title)
	}

	third := entries[2]
	if third.Path != "/music/plain.flac" {
		t.Errorf("Unexpected path %s", third.Path)
	}
	if third.Title != "" || third.HasDuration() {
		t.Error("Plain path entry must carry no metadata")
	}
}

func TestParseCRLFAndUnknownDirectives(t *testing.T) {
	input := "#EXTM3U\r\n#PLAYLIST:ignored\r\n#EXTINF:90,A - B\r\n/music/x.mp3\r\n"

	entries, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Failed to parse playlist: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Path != "/music/x.mp3" {
		t.Errorf("Expected CR stripped from path, got %q", entries[0].Path)
	}
	if entries[0].TrackArtists != "A" || entries[0].Title != "B" {
		t.Errorf("Unexpected EXTINF parse: %q/%q", entries[0].TrackArtists, entries[0].Title)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	entries := []Entry{
		{
			Path:         "/music/a.flac",
			Title:        "Song",
			TrackArtists: "A feat. B",
			AlbumTitle:   "Alb",
			AlbumArtist:  "Art",
			Duration:     200,
		},
		{
			Path:     "/music/b.flac",
			Title:    "Ballad",
			Duration: 180,
		},
	}

	var buf bytes.Buffer
	if err := Write(&buf, entries); err != nil {
		t.Fatalf("Failed to write playlist: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "#EXTM3U") {
		t.Error("Expected #EXTM3U header")
	}
	if !strings.Contains(out, "#EXTINF:200,A feat. B - Song") {
		t.Errorf("Missing EXTINF line in output:\n%s", out)
	}
	if !strings.Contains(out, "#EXTALB:Alb") || !strings.Contains(out, "#EXTART:Art") {
		t.Errorf("Missing album directives in output:\n%s", out)
	}

	parsed, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Failed to reparse written playlist: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("Expected 2 entries after round trip, got %d", len(parsed))
	}
	if parsed[0].Title != "Song" || parsed[0].TrackArtists != "A feat. B" {
		t.Errorf("Round trip lost metadata: %+v", parsed[0])
	}
	if parsed[1].Path != "/music/b.flac" || parsed[1].Duration != 180 {
		t.Errorf("Round trip lost second entry: %+v", parsed[1])
	}
}
