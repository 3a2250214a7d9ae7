package database

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"cantata/pkg/models"
)

// noDisc is the album_path sentinel for tracks that carry no disc number.
const noDisc = -1

// GetOrCreateArtist returns the id of the artist with the given name,
// inserting a new row when none exists. sortName falls back to name.
func (db *Database) GetOrCreateArtist(name, sortName string) (int64, error) {
	if sortName == "" {
		sortName = name
	}

	var id int64
	err := db.conn.QueryRow("SELECT id FROM artist WHERE name = ? ORDER BY id LIMIT 1", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to look up artist: %w", err)
	}

	result, err := db.conn.Exec("INSERT INTO artist (name, sort_name) VALUES (?, ?)", name, sortName)
	if err != nil {
		return 0, fmt.Errorf("failed to insert artist: %w", err)
	}
	return result.LastInsertId()
}

// GetOrCreateAlbum returns the id of the album with the given title under
// the given artist, inserting a new row when none exists. A non-empty folder
// fills in the album's folder if it was previously unknown.
func (db *Database) GetOrCreateAlbum(title string, artistID int64, folder string) (int64, error) {
	var id int64
	err := db.conn.QueryRow(
		"SELECT id FROM album WHERE title = ? AND artist_id = ? ORDER BY id LIMIT 1",
		title, artistID).Scan(&id)
	if err == nil {
		if folder != "" {
			if _, err := db.conn.Exec(
				"UPDATE album SET folder = ? WHERE id = ? AND (folder IS NULL OR folder = '')",
				folder, id); err != nil {
				return 0, fmt.Errorf("failed to update album folder: %w", err)
			}
		}
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to look up album: %w", err)
	}

	result, err := db.conn.Exec(
		"INSERT INTO album (title, artist_id, folder) VALUES (?, ?, ?)",
		title, artistID, nullString(folder))
	if err != nil {
		return 0, fmt.Errorf("failed to insert album: %w", err)
	}
	return result.LastInsertId()
}

// SetAlbumFolder records the containing directory last observed for an album.
func (db *Database) SetAlbumFolder(albumID int64, folder string) error {
	_, err := db.conn.Exec("UPDATE album SET folder = ? WHERE id = ?", folder, albumID)
	return err
}

// InsertTrack inserts a new track or updates an existing track (matched by
// location) returning the track's database ID. The album_path row for the
// track's (album, disc, folder) combination is ensured in the same
// transaction, so a crash cannot leave a track without its derived row.
func (db *Database) InsertTrack(track models.Track) (int64, error) {
	if track.Folder == "" {
		track.Folder = filepath.Dir(track.Location)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	disc := nullInt(track.DiscNumber)
	duration := nullInt(track.Duration)

	var id int64
	err = tx.QueryRow("SELECT id FROM track WHERE location = ?", track.Location).Scan(&id)
	switch {
	case err == nil:
		_, err = tx.Stmt(db.updateTrackStmt).Exec(
			track.Title, track.AlbumID, track.ArtistNames, track.Folder,
			disc, track.TrackNumber, duration, nullString(track.Genre), id)
		if err != nil {
			db.logger.WithError(err).WithField("track_id", id).Error("Failed to update existing track")
			return 0, err
		}
	case err == sql.ErrNoRows:
		result, err := tx.Stmt(db.insertTrackStmt).Exec(
			track.Title, track.AlbumID, track.ArtistNames, track.Location,
			track.Folder, disc, track.TrackNumber, duration, nullString(track.Genre))
		if err != nil {
			db.logger.WithError(err).WithField("location", track.Location).Error("Failed to insert new track")
			return 0, err
		}
		id, err = result.LastInsertId()
		if err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("failed to look up track: %w", err)
	}

	discNum := track.DiscNumber
	if discNum == 0 {
		discNum = noDisc
	}
	if _, err := tx.Exec(`
		INSERT INTO album_path (album_id, disc_num, path)
		VALUES (?, ?, ?)
		ON CONFLICT(album_id, disc_num, path) DO NOTHING`,
		track.AlbumID, discNum, track.Folder); err != nil {
		return 0, fmt.Errorf("failed to record album path: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit track insert: %w", err)
	}
	return id, nil
}

// GetTrackByID returns a single track by its ID.
func (db *Database) GetTrackByID(id int64) (*models.Track, error) {
	var track models.Track
	err := db.getTrackByIDStmt.QueryRow(id).Scan(
		&track.ID, &track.Title, &track.AlbumID, &track.ArtistNames,
		&track.Location, &track.Folder, &track.DiscNumber,
		&track.TrackNumber, &track.Duration, &track.Genre)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("track %d: %w", id, ErrNotFound)
		}
		db.logger.WithError(err).WithField("track_id", id).Error("Failed to get track by ID")
		return nil, err
	}
	return &track, nil
}

// TrackIDByLocation returns the id of the track whose location equals the
// given path verbatim, or ErrNotFound. This is the resolver's first tier.
func (db *Database) TrackIDByLocation(location string) (int64, error) {
	var id int64
	err := db.trackIDByLocationStmt.QueryRow(location).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		db.logger.WithError(err).WithField("location", location).Error("Failed to look up track by location")
		return 0, err
	}
	return id, nil
}

// TrackExists returns true if a track exists with the given location.
func (db *Database) TrackExists(location string) (bool, error) {
	_, err := db.TrackIDByLocation(location)
	if err == nil {
		return true, nil
	}
	if err == ErrNotFound {
		return false, nil
	}
	return false, err
}

// RemoveTrackByLocation deletes a track row identified by its location. The
// album_path cleanup trigger fires inside the same statement transaction.
func (db *Database) RemoveTrackByLocation(location string) error {
	_, err := db.removeTrackStmt.Exec(location)
	if err != nil {
		db.logger.WithError(err).WithField("location", location).Error("Failed to remove track by location")
	}
	return err
}

// RemoveTrack deletes a track row by id. Removing a track that is already
// absent is a no-op.
func (db *Database) RemoveTrack(id int64) error {
	_, err := db.conn.Exec("DELETE FROM track WHERE id = ?", id)
	if err != nil {
		db.logger.WithError(err).WithField("track_id", id).Error("Failed to remove track")
	}
	return err
}

// GetAlbumPaths returns the derived folder rows for an album, one per disc
// actually present on disk. Used for per-disc asset lookup.
func (db *Database) GetAlbumPaths(albumID int64) ([]models.AlbumPath, error) {
	rows, err := db.conn.Query(
		"SELECT album_id, disc_num, path FROM album_path WHERE album_id = ? ORDER BY disc_num, path",
		albumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []models.AlbumPath
	for rows.Next() {
		var p models.AlbumPath
		if err := rows.Scan(&p.AlbumID, &p.DiscNum, &p.Path); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// FindTrackCandidates returns the ids of all tracks satisfying the
// conjunction of the descriptor's present hints, ordered by id ascending.
// Absent hints are wildcards, never mismatches: each clause is only added
// when its input exists. Duration matches within an open interval of one
// second either side, tolerating rounding differences between tagging
// tools. The search hint is consulted only when no title hint exists and is
// matched as a substring/wildcard pattern over the track location.
func (db *Database) FindTrackCandidates(d models.EntryDescriptor) ([]int64, error) {
	query := `
		SELECT t.id FROM track t
		JOIN album al ON al.id = t.album_id
		JOIN artist ar ON ar.id = al.artist_id`

	var clauses []string
	var args []interface{}

	if d.Title != nil {
		clauses = append(clauses, "t.title = ?")
		args = append(args, *d.Title)
	}
	if d.AlbumArtist != nil {
		clauses = append(clauses, "ar.name = ?")
		args = append(args, *d.AlbumArtist)
	}
	if d.AlbumTitle != nil {
		clauses = append(clauses, "al.title = ?")
		args = append(args, *d.AlbumTitle)
	}
	if d.TrackArtists != nil {
		clauses = append(clauses, "t.artist_names = ?")
		args = append(args, *d.TrackArtists)
	}
	if d.DurationSeconds != nil {
		clauses = append(clauses, "(t.duration > ? - 1 AND t.duration < ? + 1)")
		args = append(args, *d.DurationSeconds, *d.DurationSeconds)
	}
	if d.SearchHint != nil && d.Title == nil {
		clauses = append(clauses, "t.location LIKE ?")
		args = append(args, likePattern(*d.SearchHint))
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY t.id ASC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		db.logger.WithError(err).WithField("path", d.Path).Error("Failed to query track candidates")
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// likePattern converts a search hint into a LIKE pattern: '*' wildcards map
// to '%' and the whole hint matches as a substring.
func likePattern(hint string) string {
	return "%" + strings.ReplaceAll(hint, "*", "%") + "%"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}
