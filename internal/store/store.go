// Package store is the SQLite result cache. A completed search pass over
// a file is recorded against the file's content hash and the query, so
// an unchanged file searched again with the same query replays its
// reports without re-parsing.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the result cache.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database at dbPath with WAL mode enabled.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  language        TEXT NOT NULL,
  hash            TEXT NOT NULL,
  last_searched   TIMESTAMP
);

CREATE TABLE IF NOT EXISTS searches (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  query           TEXT NOT NULL,
  searched_at     TIMESTAMP,
  UNIQUE(file_id, query)
);

CREATE TABLE IF NOT EXISTS matches (
  id              INTEGER PRIMARY KEY,
  search_id       INTEGER NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
  ordinal         INTEGER NOT NULL,
  scope_chain     TEXT NOT NULL,
  block           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_searches_file_query ON searches(file_id, query);
CREATE INDEX IF NOT EXISTS idx_matches_search ON matches(search_id);
`

// CachedMatch is one stored report row, ordered by Ordinal within its
// search pass.
type CachedMatch struct {
	Ordinal    int
	ScopeChain string
	Block      string
}

// Lookup returns the cached matches for (path, query) when the stored
// content hash equals hash. The second return distinguishes a cache hit
// with zero matches from a file never searched (or searched at a
// different hash).
func (s *Store) Lookup(path, hash, query string) ([]CachedMatch, bool, error) {
	var fileID int64
	var storedHash string
	err := s.db.QueryRow("SELECT id, hash FROM files WHERE path = ?", path).Scan(&fileID, &storedHash)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup file: %w", err)
	}
	if storedHash != hash {
		return nil, false, nil
	}

	var searchID int64
	err = s.db.QueryRow("SELECT id FROM searches WHERE file_id = ? AND query = ?", fileID, query).Scan(&searchID)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup search: %w", err)
	}

	rows, err := s.db.Query(
		"SELECT ordinal, scope_chain, block FROM matches WHERE search_id = ? ORDER BY ordinal",
		searchID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("lookup matches: %w", err)
	}
	defer rows.Close()

	var ms []CachedMatch
	for rows.Next() {
		var m CachedMatch
		if err := rows.Scan(&m.Ordinal, &m.ScopeChain, &m.Block); err != nil {
			return nil, false, fmt.Errorf("scan match: %w", err)
		}
		ms = append(ms, m)
	}
	return ms, true, rows.Err()
}

// Save records a completed search pass. A changed content hash
// invalidates every query previously cached for the file.
func (s *Store) Save(path, lang, hash, query string, ms []CachedMatch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var fileID int64
	var storedHash string
	err = tx.QueryRow("SELECT id, hash FROM files WHERE path = ?", path).Scan(&fileID, &storedHash)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.Exec(
			"INSERT INTO files (path, language, hash, last_searched) VALUES (?, ?, ?, ?)",
			path, lang, hash, time.Now(),
		)
		if err != nil {
			return fmt.Errorf("insert file: %w", err)
		}
		fileID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("file id: %w", err)
		}
	case err != nil:
		return fmt.Errorf("lookup file: %w", err)
	case storedHash != hash:
		// Content changed: drop every cached pass for this file.
		if _, err := tx.Exec("DELETE FROM searches WHERE file_id = ?", fileID); err != nil {
			return fmt.Errorf("invalidate searches: %w", err)
		}
		if _, err := tx.Exec(
			"UPDATE files SET hash = ?, language = ?, last_searched = ? WHERE id = ?",
			hash, lang, time.Now(), fileID,
		); err != nil {
			return fmt.Errorf("update file: %w", err)
		}
	default:
		if _, err := tx.Exec("UPDATE files SET last_searched = ? WHERE id = ?", time.Now(), fileID); err != nil {
			return fmt.Errorf("touch file: %w", err)
		}
	}

	// Replace any previous pass for this (file, query).
	if _, err := tx.Exec("DELETE FROM searches WHERE file_id = ? AND query = ?", fileID, query); err != nil {
		return fmt.Errorf("delete search: %w", err)
	}
	res, err := tx.Exec(
		"INSERT INTO searches (file_id, query, searched_at) VALUES (?, ?, ?)",
		fileID, query, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert search: %w", err)
	}
	searchID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("search id: %w", err)
	}

	for _, m := range ms {
		if _, err := tx.Exec(
			"INSERT INTO matches (search_id, ordinal, scope_chain, block) VALUES (?, ?, ?, ?)",
			searchID, m.Ordinal, m.ScopeChain, m.Block,
		); err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
	}

	return tx.Commit()
}
