// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package persistence stores each network's serialized configuration
// under the networks.d/<16-hex-id>.conf key convention, backed by a
// local SQLite database.
package persistence

import (
	"database/sql"
	"fmt"

	"github.com/meshlayer/overlay/internal/addressing"

	_ "modernc.org/sqlite"
)

// Key returns the networks.d/<16-hex-id>.conf path for id.
func Key(id addressing.NetworkID) string {
	return fmt.Sprintf("networks.d/%016x.conf", uint64(id))
}

// Store is a minimal KV interface over network configuration blobs.
// Network depends on this interface, not on *SQLiteStore, so tests can swap
// in an in-memory fake.
type Store interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, bool, error)
	Delete(key string) error
}

// SQLiteStore is the on-disk Store implementation.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens or creates the persistence database at path.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("persistence: open: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS kv (
		key  TEXT PRIMARY KEY,
		data BLOB NOT NULL
	);`)
	return err
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Put writes data under key, replacing any prior value.
func (s *SQLiteStore) Put(key string, data []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, data) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data
	`, key, data)
	if err != nil {
		return fmt.Errorf("persistence: put %s: %w", key, err)
	}
	return nil
}

// Get reads the value stored under key. ok is false when no such key
// exists.
func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM kv WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("persistence: get %s: %w", key, err)
	}
	return data, true, nil
}

// Delete removes key. It is not an error for key to be absent.
func (s *SQLiteStore) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("persistence: delete %s: %w", key, err)
	}
	return nil
}
