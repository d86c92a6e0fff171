// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides durable key-value state with atomic session writes

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "storage")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS kv_state (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get returns the value for key, or ErrKeyNotFound
func (s *SQLiteStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading key %q: %w", key, err)
	}
	return value, nil
}

// Set writes the value for key, replacing any existing value
func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing key %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM kv_state WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting key %q: %w", key, err)
	}
	return nil
}

// SetSession writes token, user data and auth method in a single transaction
// so that readers never observe a half-populated session.
func (s *SQLiteStore) SetSession(rec SessionRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning session write: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	upsert := `
		INSERT INTO kv_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	pairs := []struct{ key, value string }{
		{KeyAuthToken, rec.Token},
		{KeyUserData, rec.UserData},
		{KeyAuthMethod, rec.Method},
		{KeyUserType, rec.Method},
	}
	for _, p := range pairs {
		if _, err := tx.Exec(upsert, p.key, p.value, now); err != nil {
			return fmt.Errorf("writing session key %q: %w", p.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session write: %w", err)
	}
	return nil
}

// GetSession reads the session record in a single transaction.
// Returns ErrKeyNotFound if no token is stored.
func (s *SQLiteStore) GetSession() (SessionRecord, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return SessionRecord{}, fmt.Errorf("beginning session read: %w", err)
	}
	defer tx.Rollback()

	read := func(key string) (string, error) {
		var value string
		err := tx.QueryRow("SELECT value FROM kv_state WHERE key = ?", key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrKeyNotFound
		}
		return value, err
	}

	token, err := read(KeyAuthToken)
	if err != nil {
		return SessionRecord{}, err
	}

	userData, err := read(KeyUserData)
	if err != nil {
		return SessionRecord{}, err
	}

	method, err := read(KeyAuthMethod)
	if err != nil {
		return SessionRecord{}, err
	}

	return SessionRecord{Token: token, UserData: userData, Method: method}, nil
}

// ClearSession removes the session keys atomically. The preference and UI
// keys are left untouched; logout-everywhere removes those separately.
func (s *SQLiteStore) ClearSession() error {
	_, err := s.db.Exec("DELETE FROM kv_state WHERE key IN (?, ?, ?, ?)",
		KeyAuthToken, KeyUserData, KeyAuthMethod, KeyUserType)
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
