package types

import "errors"

// Error taxonomy shared across the engine. Callers are expected to test with
// errors.Is; components wrap these with fmt.Errorf("%w: ...") to add context.
var (
	// ErrNotFound indicates a missing saved document or unknown project.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPath indicates a filename or subdirectory that was rejected
	// by sanitization (path traversal, absolute path, empty name).
	ErrInvalidPath = errors.New("invalid path")

	// ErrNoFiles indicates a project root with no indexable files.
	ErrNoFiles = errors.New("no indexable files found")

	// ErrIndexBuild indicates an unrecoverable I/O error while scanning or
	// reading a project. It fails the current request only; the index
	// registry is left untouched.
	ErrIndexBuild = errors.New("index build failed")

	// ErrStorageWrite indicates a failed save. No partial file is left behind.
	ErrStorageWrite = errors.New("storage write failed")
)
