// Package indexer builds in-memory search indexes over project trees.
//
// A Registry holds one index per project root. Staleness is detected by a
// cheap scan fingerprint over file paths and modification times; content is
// only re-read, and embeddings only regenerated, for files whose content
// hash actually changed. Concurrent rebuild requests for the same root
// collapse onto a single in-flight build.
//
// An optional Watcher invalidates indexes on filesystem events instead of
// waiting for the next scan.
package indexer
