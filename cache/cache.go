// Package cache stores extracted nuggets in SQLite, keyed by page URL and
// a hash of the page text, so an unchanged page is not sent to the model
// twice.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"nuggets/nugget"
)

// ErrCacheMiss is returned by Get when nothing is stored for the page.
var ErrCacheMiss = errors.New("cache miss")

// Entry is a cached extraction.
type Entry struct {
	URL         string
	Hash        string
	Provider    string
	ExtractedAt time.Time
	Nuggets     []nugget.Nugget
}

// Store is an extraction cache backed by a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %s: %w", p, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		url TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		provider TEXT,
		extracted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (url, content_hash)
	);

	CREATE TABLE IF NOT EXISTS nuggets (
		url TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		position INTEGER NOT NULL,
		type TEXT NOT NULL,
		start_content TEXT NOT NULL,
		end_content TEXT NOT NULL,
		PRIMARY KEY (url, content_hash, position),
		FOREIGN KEY (url, content_hash) REFERENCES pages(url, content_hash) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Hash returns the content hash pages are stored under.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns the nuggets stored for url when its text is unchanged.
func (s *Store) Get(ctx context.Context, url, text string) (*Entry, error) {
	e := &Entry{URL: url, Hash: Hash(text)}

	var provider sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT provider, extracted_at FROM pages WHERE url = ? AND content_hash = ?`,
		url, e.Hash,
	).Scan(&provider, &e.ExtractedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}
	e.Provider = provider.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, start_content, end_content FROM nuggets
		 WHERE url = ? AND content_hash = ? ORDER BY position`,
		url, e.Hash,
	)
	if err != nil {
		return nil, fmt.Errorf("reading nuggets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var n nugget.Nugget
		if err := rows.Scan(&typ, &n.StartContent, &n.EndContent); err != nil {
			return nil, err
		}
		if n.Type, err = nugget.ParseType(typ); err != nil {
			return nil, fmt.Errorf("cached nugget: %w", err)
		}
		e.Nuggets = append(e.Nuggets, n)
	}
	return e, rows.Err()
}

// Put replaces whatever was stored for url with nuggets extracted from text.
func (s *Store) Put(ctx context.Context, url, text, provider string, nuggets []nugget.Nugget) error {
	hash := Hash(text)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteURL(ctx, tx, url); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pages (url, content_hash, provider, extracted_at) VALUES (?, ?, ?, ?)`,
		url, hash, provider, time.Now().UTC(),
	); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nuggets (url, content_hash, position, type, start_content, end_content)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, n := range nuggets {
		if !n.Type.Valid() {
			return fmt.Errorf("nugget %d: %w", i, nugget.ErrUnknownType)
		}
		if _, err := stmt.ExecContext(ctx, url, hash, i, n.Type.String(), n.StartContent, n.EndContent); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Delete forgets every extraction stored for url.
func (s *Store) Delete(ctx context.Context, url string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := deleteURL(ctx, tx, url); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteURL(ctx context.Context, tx *sql.Tx, url string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM nuggets WHERE url = ?`, url); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE url = ?`, url)
	return err
}

// Count returns the number of cached pages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&n)
	return n, err
}
