// Package embedcache persists embeddings in a SQLite database so vectors
// survive process restarts. Entries are keyed by (content hash, model):
// a file whose content is unchanged never hits the embedding provider
// again, even after the in-memory index is rebuilt.
package embedcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("embedding cache is closed")

const schema = `
CREATE TABLE IF NOT EXISTS embeddings (
	content_hash TEXT NOT NULL,
	model        TEXT NOT NULL,
	dimension    INTEGER NOT NULL,
	vector       BLOB NOT NULL,
	created_at   INTEGER NOT NULL,
	PRIMARY KEY (content_hash, model)
);
`

// Store is a durable embedding cache backed by SQLite
type Store struct {
	db     *sql.DB
	closed bool
}

// Open creates or opens the cache database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// Single writer avoids SQLITE_BUSY under concurrent batch inserts
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Get returns the cached vector for (contentHash, model), or ok=false on a miss
func (s *Store) Get(ctx context.Context, contentHash, model string) ([]float32, bool, error) {
	if s.closed {
		return nil, false, ErrClosed
	}

	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT vector FROM embeddings WHERE content_hash = ? AND model = ?",
		contentHash, model).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying embedding cache: %w", err)
	}

	return deserializeVector(blob), true, nil
}

// Put stores a vector for (contentHash, model), replacing any existing entry
func (s *Store) Put(ctx context.Context, contentHash, model string, vector []float32) error {
	if s.closed {
		return ErrClosed
	}
	if len(vector) == 0 {
		return errors.New("empty vector")
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO embeddings (content_hash, model, dimension, vector, created_at) VALUES (?, ?, ?, ?, ?)",
		contentHash, model, len(vector), serializeVector(vector), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("storing embedding: %w", err)
	}
	return nil
}

// Len returns the number of cached embeddings
func (s *Store) Len(ctx context.Context) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return n, nil
}

// Prune removes entries older than the given age
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}

	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := s.db.ExecContext(ctx, "DELETE FROM embeddings WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning embedding cache: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
