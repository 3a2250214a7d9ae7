// Package m3u reads and writes M3U / extended-M3U playlists.
//
// The dialect matches what the export side produces: an #EXTM3U header, then
// per entry an #EXTINF line carrying duration and "<artists> - <title>",
// optional #EXTALB and #EXTART lines for album title and album artist, the
// file location, and a blank separator line.
package m3u

import (
	"bufio"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
)

// Entry is one playlist line group: a path plus whatever metadata the
// playlist embedded. Duration is -1 when the playlist carried none.
type Entry struct {
	Path         string
	Title        string
	TrackArtists string
	AlbumTitle   string
	AlbumArtist  string
	Duration     int
}

// HasDuration reports whether the entry carried a usable duration.
func (e Entry) HasDuration() bool {
	return e.Duration >= 0
}

var lineEnding = func() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}()

// Parse reads a playlist from r. Unknown directives are ignored; plain
// path-only playlists parse fine. Blank lines reset nothing: accumulated
// directives always attach to the next path line.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var entries []Entry
	pending := Entry{Duration: -1}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			parseExtInf(strings.TrimPrefix(line, "#EXTINF:"), &pending)
		case strings.HasPrefix(line, "#EXTALB:"):
			pending.AlbumTitle = strings.TrimSpace(strings.TrimPrefix(line, "#EXTALB:"))
		case strings.HasPrefix(line, "#EXTART:"):
			pending.AlbumArtist = strings.TrimSpace(strings.TrimPrefix(line, "#EXTART:"))
		case strings.HasPrefix(line, "#"):
			// #EXTM3U header or an unknown directive
		default:
			pending.Path = line
			entries = append(entries, pending)
			pending = Entry{Duration: -1}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}
	return entries, nil
}

// parseExtInf fills duration, artists and title from an EXTINF payload of
// the form "<seconds>,<artists> - <title>". Malformed payloads degrade to
// whatever fields do parse.
func parseExtInf(payload string, e *Entry) {
	durStr, rest, found := strings.Cut(payload, ",")
	if !found {
		rest = ""
	}

	if dur, err := strconv.Atoi(strings.TrimSpace(durStr)); err == nil && dur >= 0 {
		e.Duration = dur
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return
	}

	if artists, title, found := strings.Cut(rest, " - "); found {
		e.TrackArtists = strings.TrimSpace(artists)
		e.Title = strings.TrimSpace(title)
	} else {
		e.Title = rest
	}
}

// Write emits entries as an extended-M3U playlist.
func Write(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "#EXTM3U%s", lineEnding); err != nil {
		return err
	}

	for _, e := range entries {
		desc := e.Title
		if e.TrackArtists != "" {
			desc = e.TrackArtists + " - " + e.Title
		}
		fmt.Fprintf(bw, "#EXTINF:%d,%s%s", e.Duration, desc, lineEnding)
		if e.AlbumTitle != "" {
			fmt.Fprintf(bw, "#EXTALB:%s%s", e.AlbumTitle, lineEnding)
		}
		if e.AlbumArtist != "" {
			fmt.Fprintf(bw, "#EXTART:%s%s", e.AlbumArtist, lineEnding)
		}
		fmt.Fprintf(bw, "%s%s", e.Path, lineEnding)
		if _, err := fmt.Fprint(bw, lineEnding); err != nil {
			return err
		}
	}

	return bw.Flush()
}
