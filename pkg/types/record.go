package types

import (
	"errors"
	"time"
)

// FileRecord is one indexed file within a ProjectIndex. Records are owned
// exclusively by the index that created them and are never mutated after the
// index is published.
type FileRecord struct {
	// Identification
	RelPath string // Relative to project root, forward-slash separators
	AbsPath string

	// Change tracking
	ModTime     time.Time
	ContentHash string // SHA-256 hex of Content

	// Content
	Content string
	Tokens  int

	// Embedding vector produced for this (path, mtime, content) triple.
	// Regenerated only when the content hash changes.
	Embedding []float32
}

// Validate checks structural invariants of a completed record.
func (r *FileRecord) Validate() error {
	if r.RelPath == "" {
		return errors.New("relative path is required")
	}
	if r.AbsPath == "" {
		return errors.New("absolute path is required")
	}
	if r.ContentHash == "" {
		return errors.New("content hash is required")
	}
	if len(r.Embedding) == 0 {
		return errors.New("embedding is required")
	}
	return nil
}
