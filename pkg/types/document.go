package types

import (
	"errors"
	"time"
)

// SavedFile is one file snapshot embedded in a saved result document.
type SavedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SavedResultDocument is the persisted unit written by the storage router.
// It is a durable snapshot: file contents are embedded at save time and the
// document is never invalidated by later file changes. Saves overwrite, they
// do not merge.
type SavedResultDocument struct {
	Project     string      `json:"project"`
	ProjectRoot string      `json:"project_root"`
	Query       string      `json:"query"`
	StorageMode string      `json:"storage_mode"`
	TopK        int         `json:"top_k"`
	Timestamp   time.Time   `json:"timestamp"`
	FileCount   int         `json:"file_count"`
	Files       []SavedFile `json:"files"`
	Statistics  TokenStats  `json:"statistics"`
}

// Validate checks the invariants enforced at construction time.
func (d *SavedResultDocument) Validate() error {
	if d.Project == "" {
		return errors.New("project name is required")
	}
	if d.Query == "" {
		return errors.New("query is required")
	}
	if d.TopK < 1 {
		return errors.New("top_k must be >= 1")
	}
	if d.FileCount != len(d.Files) {
		return errors.New("file_count does not match files")
	}
	return nil
}
