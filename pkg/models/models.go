package models

import "time"

// Artist is an album-level artist. Names are not unique: two different
// artists may legitimately share a name.
type Artist struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	SortName string `json:"sortName,omitempty"`
}

// Album groups tracks under a single artist. Folder is the containing
// directory for the album as last observed on disk; it may be empty for
// stores created before the folder migration.
type Album struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	ArtistID int64  `json:"artistId"`
	Folder   string `json:"folder,omitempty"`
}

// Track is a single playable file in the library.
//
// ArtistNames is the denormalized display string for the track's performing
// artists and may differ from the album artist (compilations, features).
// DiscNumber 0 means the file carried no disc tag. Duration 0 means unknown.
type Track struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	AlbumID     int64  `json:"albumId"`
	ArtistNames string `json:"artistNames"`
	Location    string `json:"-"`
	Folder      string `json:"-"`
	DiscNumber  int    `json:"discNumber"`
	TrackNumber int    `json:"trackNumber"`
	Duration    int    `json:"duration"` // in seconds
	Genre       string `json:"genre,omitempty"`
}

// AlbumPath records which physical folder holds a given disc of a given
// album. Rows are derived: the scanner creates them as tracks are inserted
// and the store's deletion trigger removes them when the last track for the
// (album, disc, folder) combination is gone. DiscNum is -1 for tracks that
// carry no disc number.
type AlbumPath struct {
	AlbumID int64  `json:"albumId"`
	DiscNum int    `json:"discNum"`
	Path    string `json:"path"`
}

// Playlist is an ordering-agnostic container; ordering lives on the items.
type Playlist struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	TrackCount  int       `json:"trackCount"`
}

// PlaylistItem binds a track into a playlist at a position. Positions are
// unique within a playlist and define playback order; gaps are allowed.
type PlaylistItem struct {
	ID         int64 `json:"id"`
	PlaylistID int64 `json:"playlistId"`
	TrackID    int64 `json:"trackId"`
	Position   int   `json:"position"`
}

// EntryDescriptor is the parsed representation of one playlist entry: a path
// plus whatever metadata hints the playlist embedded. Nil fields are
// wildcards for the resolver, never mismatches. Paths are expected
// pre-normalized (absolute, platform-native separators) by the caller.
type EntryDescriptor struct {
	Path            string
	Title           *string
	AlbumArtist     *string
	AlbumTitle      *string
	TrackArtists    *string
	DurationSeconds *int
	SearchHint      *string
}

// PlaybackRecord is one flat row of a materialized playlist, everything the
// playback/export side needs without further joins.
type PlaybackRecord struct {
	Location         string `json:"location"`
	Duration         int    `json:"duration"`
	TrackArtistNames string `json:"trackArtistNames"`
	ArtistName       string `json:"artistName"`
	TrackTitle       string `json:"trackTitle"`
	AlbumTitle       string `json:"albumTitle"`
}
