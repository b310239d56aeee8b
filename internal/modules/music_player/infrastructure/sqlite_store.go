package infrastructure

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
)

// schemaInitTimeout bounds pragma and table setup.
const schemaInitTimeout = 10 * time.Second

// Ensure SQLiteStore implements the persistence ports.
var (
	_ ports.HistoryStore  = (*SQLiteStore)(nil)
	_ ports.PlaylistStore = (*SQLiteStore)(nil)
)

// SQLiteStore persists play history and user playlists in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path and
// prepares its schema.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)

	store := &SQLiteStore{db: db}
	if err := store.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Info("opened database", "path", path)
	return store, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}

	initCtx, cancel := context.WithTimeout(ctx, schemaInitTimeout)
	defer cancel()

	for _, p := range pragmas {
		if _, err := s.db.ExecContext(initCtx, p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	tx, err := s.db.BeginTx(initCtx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS play_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			url TEXT NOT NULL,
			title TEXT NOT NULL,
			played_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_play_history_guild ON play_history (guild_id, played_at)`,
		`CREATE TABLE IF NOT EXISTS playlists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			url TEXT NOT NULL,
			title TEXT NOT NULL,
			added_at DATETIME NOT NULL,
			UNIQUE(user_id, url)
		)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- HistoryStore ---

// LogPlayed records that a track started playing in a guild.
func (s *SQLiteStore) LogPlayed(ctx context.Context, guildID snowflake.ID, originURL, title string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO play_history (guild_id, url, title, played_at)
		VALUES (?, ?, ?, ?)
	`, guildID.String(), originURL, title, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to log played track: %w", err)
	}
	return nil
}

// --- PlaylistStore ---

// Add saves a url to the user's playlist. Returns false if it was already saved.
func (s *SQLiteStore) Add(ctx context.Context, userID snowflake.ID, url, title string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO playlists (user_id, url, title, added_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, url) DO NOTHING
	`, userID.String(), url, title, time.Now().UTC())
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns the user's entries, oldest first.
func (s *SQLiteStore) List(ctx context.Context, userID snowflake.ID) ([]ports.PlaylistEntry, error) {
	return s.queryEntries(ctx, `
		SELECT id, url, title, added_at FROM playlists
		WHERE user_id = ? ORDER BY added_at ASC, id ASC
	`, userID.String())
}

// Remove deletes an entry of the user's playlist.
func (s *SQLiteStore) Remove(ctx context.Context, userID snowflake.ID, entryID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM playlists WHERE user_id = ? AND id = ?",
		userID.String(), entryID,
	)
	return err
}

// Random returns up to n entries of the user's playlist in random order.
func (s *SQLiteStore) Random(ctx context.Context, userID snowflake.ID, n int) ([]ports.PlaylistEntry, error) {
	return s.queryEntries(ctx, `
		SELECT id, url, title, added_at FROM playlists
		WHERE user_id = ? ORDER BY RANDOM() LIMIT ?
	`, userID.String(), n)
}

func (s *SQLiteStore) queryEntries(ctx context.Context, query string, args ...any) ([]ports.PlaylistEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []ports.PlaylistEntry
	for rows.Next() {
		var e ports.PlaylistEntry
		if err := rows.Scan(&e.ID, &e.URL, &e.Title, &e.AddedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
