package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned by lookup helpers when no row matches.
var ErrNotFound = errors.New("not found")

// Database wraps a *sql.DB providing higher-level helper methods for the
// library store. It is safe for concurrent use because the underlying
// *sql.DB is concurrency-safe; every deletion path relies on the
// album_path cleanup trigger so callers cannot forget the derived-state
// maintenance.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	// Prepared statements for the hot paths (scanner writes, per-entry
	// resolver lookups during playlist import)
	trackIDByLocationStmt *sql.Stmt
	getTrackByIDStmt      *sql.Stmt
	insertTrackStmt       *sql.Stmt
	updateTrackStmt       *sql.Stmt
	removeTrackStmt       *sql.Stmt
}

// NewDatabase opens (or creates) a SQLite library store at the provided path
// and ensures all tables, indices, triggers and migrations are applied. It
// also sets lightweight performance-oriented pragmas (WAL, cache sizing).
// Caller should Close() it when finished.
func NewDatabase(dbPath string) (*Database, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - adjusted for SQLite
	conn.SetMaxOpenConns(5) // SQLite works better with fewer connections
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	// Enable WAL mode for better concurrency while the scanner writes
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=2000;",
		"PRAGMA temp_store=memory;",
		"PRAGMA foreign_keys=ON;",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
	}

	if err := db.createSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Library database initialized")
	return db, nil
}

// createSchema creates tables, indices and triggers if they do not already
// exist, then executes any migrations. This is idempotent and safe to call
// multiple times, including against a store already at a later version.
func (db *Database) createSchema() error {
	artistTable := `
	CREATE TABLE IF NOT EXISTS artist (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		sort_name TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	albumTable := `
	CREATE TABLE IF NOT EXISTS album (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		artist_id INTEGER NOT NULL,
		folder TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (artist_id) REFERENCES artist(id) ON DELETE CASCADE
	);`

	trackTable := `
	CREATE TABLE IF NOT EXISTS track (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		album_id INTEGER NOT NULL,
		artist_names TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL UNIQUE,
		folder TEXT NOT NULL,
		disc_number INTEGER,
		track_number INTEGER DEFAULT 0,
		duration INTEGER,
		genre TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (album_id) REFERENCES album(id) ON DELETE CASCADE
	);`

	// One row per (album, disc, folder) combination actually observed on
	// disk. disc_num is -1 for tracks without a disc tag.
	albumPathTable := `
	CREATE TABLE IF NOT EXISTS album_path (
		album_id INTEGER NOT NULL,
		disc_num INTEGER NOT NULL DEFAULT -1,
		path TEXT NOT NULL,
		PRIMARY KEY (album_id, disc_num, path),
		FOREIGN KEY (album_id) REFERENCES album(id) ON DELETE CASCADE
	);`

	playlistTable := `
	CREATE TABLE IF NOT EXISTS playlist (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	// track_id intentionally carries no foreign key: items may outlive
	// their track and materialization skips the orphans.
	playlistItemTable := `
	CREATE TABLE IF NOT EXISTS playlist_item (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		playlist_id INTEGER NOT NULL,
		track_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (playlist_id, position),
		FOREIGN KEY (playlist_id) REFERENCES playlist(id) ON DELETE CASCADE
	);`

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_track_album ON track(album_id);",
		"CREATE INDEX IF NOT EXISTS idx_track_album_disc_folder ON track(album_id, disc_number, folder);",
		"CREATE INDEX IF NOT EXISTS idx_track_title ON track(title);",
		"CREATE INDEX IF NOT EXISTS idx_album_artist ON album(artist_id);",
		"CREATE INDEX IF NOT EXISTS idx_playlist_item_track ON playlist_item(track_id);",
	}

	tables := []string{artistTable, albumTable, trackTable, albumPathTable, playlistTable, playlistItemTable}
	for _, table := range tables {
		if _, err := db.conn.Exec(table); err != nil {
			return err
		}
	}

	for _, index := range indices {
		if _, err := db.conn.Exec(index); err != nil {
			return err
		}
	}

	// Run migrations
	if err := db.runMigrations(); err != nil {
		return err
	}

	return nil
}

// albumPathCleanupTrigger restores the album_path invariant reactively:
// after a track is deleted, the (album, disc, folder) row is removed when no
// surviving track still matches the triple. The trigger executes inside the
// same transaction as the triggering DELETE, so concurrent readers never
// observe an orphaned album_path row.
const albumPathCleanupTrigger = `
CREATE TRIGGER IF NOT EXISTS trg_album_path_cleanup
AFTER DELETE ON track
FOR EACH ROW
BEGIN
	DELETE FROM album_path
	WHERE album_id = OLD.album_id
	  AND disc_num = IFNULL(OLD.disc_number, -1)
	  AND path = OLD.folder
	  AND NOT EXISTS (
		SELECT 1 FROM track
		WHERE album_id = OLD.album_id
		  AND IFNULL(disc_number, -1) = IFNULL(OLD.disc_number, -1)
		  AND folder = OLD.folder
	  );
END;`

// runMigrations performs incremental schema updates in-place. Each migration
// is idempotent and safe to re-run against a store already at a later
// version; keep them additive and lightweight.
func (db *Database) runMigrations() error {
	// Migration 1: Add folder column to album table if it doesn't exist
	// (stores created before per-disc folder tracking lack it)
	var folderColumnExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('album')
		WHERE name = 'folder'`).Scan(&folderColumnExists)

	if err != nil {
		return err
	}

	if !folderColumnExists {
		_, err = db.conn.Exec("ALTER TABLE album ADD COLUMN folder TEXT")
		if err != nil {
			return err
		}

		db.logger.Info("Added folder column to album table")
	}

	// Migration 2: Install the album_path cleanup trigger if it doesn't
	// exist. Paired with migration 1 as a discrete, backward-compatible
	// schema change.
	var triggerExists bool
	err = db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type = 'trigger' AND name = 'trg_album_path_cleanup'`).Scan(&triggerExists)

	if err != nil {
		return err
	}

	if !triggerExists {
		if _, err = db.conn.Exec(albumPathCleanupTrigger); err != nil {
			return err
		}

		db.logger.Info("Installed album_path cleanup trigger")
	}

	return nil
}

// prepareStatements prepares commonly used SQL statements for better performance
func (db *Database) prepareStatements() error {
	var err error

	// Exact-location lookup: the resolver's first tier, hit once per
	// playlist-import entry
	db.trackIDByLocationStmt, err = db.conn.Prepare(`
		SELECT id FROM track WHERE location = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare track ID by location statement: %w", err)
	}

	db.getTrackByIDStmt, err = db.conn.Prepare(`
		SELECT id, title, album_id, artist_names, location, folder,
		       IFNULL(disc_number, 0), IFNULL(track_number, 0), IFNULL(duration, 0), IFNULL(genre, '')
		FROM track WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get track by ID statement: %w", err)
	}

	db.insertTrackStmt, err = db.conn.Prepare(`
		INSERT INTO track (title, album_id, artist_names, location, folder, disc_number, track_number, duration, genre)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert track statement: %w", err)
	}

	db.updateTrackStmt, err = db.conn.Prepare(`
		UPDATE track SET title = ?, album_id = ?, artist_names = ?, folder = ?, disc_number = ?, track_number = ?, duration = ?, genre = ?
		WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare update track statement: %w", err)
	}

	db.removeTrackStmt, err = db.conn.Prepare(`
		DELETE FROM track WHERE location = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare remove track statement: %w", err)
	}

	return nil
}

// Close closes the underlying database connection and prepared statements.
func (db *Database) Close() error {
	statements := []*sql.Stmt{
		db.trackIDByLocationStmt,
		db.getTrackByIDStmt,
		db.insertTrackStmt,
		db.updateTrackStmt,
		db.removeTrackStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				db.logger.WithError(err).Error("Failed to close prepared statement")
			}
		}
	}

	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
