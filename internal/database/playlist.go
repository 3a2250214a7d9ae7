package database

import (
	"database/sql"
	"fmt"

	"cantata/pkg/models"
)

// CreatePlaylist inserts a new playlist and returns its ID.
func (db *Database) CreatePlaylist(name, description string) (int64, error) {
	result, err := db.conn.Exec(`
		INSERT INTO playlist (name, description)
		VALUES (?, ?)`, name, nullString(description))

	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

// GetAllPlaylists returns all playlists along with derived item counts.
func (db *Database) GetAllPlaylists() ([]models.Playlist, error) {
	rows, err := db.conn.Query(`
		SELECT p.id, p.name, IFNULL(p.description, ''), p.created_at,
		       COALESCE(COUNT(pi.id), 0) as track_count
		FROM playlist p
		LEFT JOIN playlist_item pi ON p.id = pi.playlist_id
		GROUP BY p.id, p.name, p.description, p.created_at
		ORDER BY p.created_at DESC`)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playlists []models.Playlist
	for rows.Next() {
		var playlist models.Playlist
		err := rows.Scan(&playlist.ID, &playlist.Name, &playlist.Description,
			&playlist.CreatedAt, &playlist.TrackCount)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	return playlists, rows.Err()
}

// GetPlaylist returns a single playlist by id.
func (db *Database) GetPlaylist(id int64) (*models.Playlist, error) {
	var playlist models.Playlist
	err := db.conn.QueryRow(`
		SELECT id, name, IFNULL(description, ''), created_at
		FROM playlist WHERE id = ?`, id).Scan(
		&playlist.ID, &playlist.Name, &playlist.Description, &playlist.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("playlist %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &playlist, nil
}

// AddTrackToPlaylist appends a track to the end of a playlist.
func (db *Database) AddTrackToPlaylist(playlistID, trackID int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Get the next position
	var maxPosition sql.NullInt64
	err = tx.QueryRow(`
		SELECT MAX(position) FROM playlist_item WHERE playlist_id = ?`,
		playlistID).Scan(&maxPosition)

	if err != nil && err != sql.ErrNoRows {
		return err
	}

	position := 1
	if maxPosition.Valid {
		position = int(maxPosition.Int64) + 1
	}

	if _, err = tx.Exec(`
		INSERT INTO playlist_item (playlist_id, track_id, position)
		VALUES (?, ?, ?)`,
		playlistID, trackID, position); err != nil {
		return err
	}

	return tx.Commit()
}

// InsertTrackAt places a track at the given position, shifting any items at
// or after it one position down. Positions below 1 are clamped to 1.
func (db *Database) InsertTrackAt(playlistID, trackID int64, position int) error {
	if position < 1 {
		position = 1
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Shift through negative space so the (playlist_id, position)
	// uniqueness constraint never trips mid-update
	if _, err = tx.Exec(`
		UPDATE playlist_item SET position = -(position + 1)
		WHERE playlist_id = ? AND position >= ?`,
		playlistID, position); err != nil {
		return err
	}
	if _, err = tx.Exec(`
		UPDATE playlist_item SET position = -position
		WHERE playlist_id = ? AND position < 0`,
		playlistID); err != nil {
		return err
	}

	if _, err = tx.Exec(`
		INSERT INTO playlist_item (playlist_id, track_id, position)
		VALUES (?, ?, ?)`,
		playlistID, trackID, position); err != nil {
		return err
	}

	return tx.Commit()
}

// RemoveTrackFromPlaylist removes every item referencing the given track
// from the given playlist. Remaining positions keep their values; gaps are
// permitted by the ordering contract.
func (db *Database) RemoveTrackFromPlaylist(playlistID, trackID int64) error {
	_, err := db.conn.Exec(`
		DELETE FROM playlist_item
		WHERE playlist_id = ? AND track_id = ?`,
		playlistID, trackID)

	return err
}

// DeletePlaylist deletes the playlist and any playlist_item rows referencing it.
func (db *Database) DeletePlaylist(playlistID int64) error {
	_, err := db.conn.Exec("DELETE FROM playlist WHERE id = ?", playlistID)
	return err
}

// UpdatePlaylist updates playlist metadata (name, description).
func (db *Database) UpdatePlaylist(playlistID int64, name, description string) error {
	_, err := db.conn.Exec(`
		UPDATE playlist
		SET name = ?, description = ?
		WHERE id = ?`,
		name, nullString(description), playlistID)
	return err
}

// GetPlaylistItems returns the raw item rows for a playlist in stored order,
// including items whose track no longer exists.
func (db *Database) GetPlaylistItems(playlistID int64) ([]models.PlaylistItem, error) {
	rows, err := db.conn.Query(`
		SELECT id, playlist_id, track_id, position
		FROM playlist_item
		WHERE playlist_id = ?
		ORDER BY position`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.PlaylistItem
	for rows.Next() {
		var item models.PlaylistItem
		if err := rows.Scan(&item.ID, &item.PlaylistID, &item.TrackID, &item.Position); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MaterializePlaylist reconstructs the ordered sequence of playable records
// for a playlist, joining through track, album and artist. The result is a
// snapshot: later mutation of the playlist or library does not alter it.
// Items whose track has been deleted drop out of the inner join silently, so
// playback proceeds with whatever remains.
func (db *Database) MaterializePlaylist(playlistID int64) ([]models.PlaybackRecord, error) {
	rows, err := db.conn.Query(`
		SELECT t.location, IFNULL(t.duration, 0), t.artist_names,
		       ar.name, t.title, al.title
		FROM playlist_item pi
		JOIN track t ON t.id = pi.track_id
		JOIN album al ON al.id = t.album_id
		JOIN artist ar ON ar.id = al.artist_id
		WHERE pi.playlist_id = ?
		ORDER BY pi.position ASC`, playlistID)
	if err != nil {
		db.logger.WithError(err).WithField("playlist_id", playlistID).Error("Failed to materialize playlist")
		return nil, err
	}
	defer rows.Close()

	var records []models.PlaybackRecord
	for rows.Next() {
		var r models.PlaybackRecord
		if err := rows.Scan(&r.Location, &r.Duration, &r.TrackArtistNames,
			&r.ArtistName, &r.TrackTitle, &r.AlbumTitle); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
