package searcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InSelfControll/context-broker-mcp/internal/config"
)

func sampleEntry(fingerprint uint64) Entry {
	return Entry{
		Query:            "login handler",
		TopK:             3,
		Results:          []CachedResult{{Path: "auth.go", Score: 0.92}},
		FileMtimes:       map[string]int64{"auth.go": 1000},
		IndexFingerprint: fingerprint,
		CreatedAt:        time.Now(),
	}
}

func TestEntryValid(t *testing.T) {
	entry := sampleEntry(42)
	mtimes := map[string]int64{"auth.go": 1000, "db.go": 2000}

	assert.True(t, entryValid(entry, 42, mtimes))
	assert.False(t, entryValid(entry, 43, mtimes), "fingerprint change invalidates")
	assert.False(t, entryValid(entry, 42, map[string]int64{"auth.go": 1001}), "mtime change invalidates")
	assert.False(t, entryValid(entry, 42, map[string]int64{}), "missing result file invalidates")
}

func TestCacheStoreLookup(t *testing.T) {
	root := t.TempDir()
	cache := NewQueryCache()

	entry := sampleEntry(7)
	cache.Store(root, entry)

	got, ok := cache.Lookup(root, "login handler", 3)
	require.True(t, ok)
	assert.Equal(t, entry.Results, got.Results)
	assert.Equal(t, uint64(7), got.IndexFingerprint)

	_, ok = cache.Lookup(root, "login handler", 5)
	assert.False(t, ok, "different topK is a different entry")

	_, ok = cache.Lookup(root, "other query", 3)
	assert.False(t, ok)
}

func TestCachePersistsAcrossInstances(t *testing.T) {
	root := t.TempDir()

	NewQueryCache().Store(root, sampleEntry(9))

	// The side file lives inside the project root
	path := filepath.Join(root, config.QueryCacheDir, config.QueryCacheFile)
	_, err := os.Stat(path)
	require.NoError(t, err)

	reloaded := NewQueryCache()
	got, ok := reloaded.Lookup(root, "login handler", 3)
	require.True(t, ok)
	assert.Equal(t, uint64(9), got.IndexFingerprint)
	assert.Equal(t, []CachedResult{{Path: "auth.go", Score: 0.92}}, got.Results)
}

func TestCacheIgnoresCorruptFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, config.QueryCacheDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.QueryCacheFile), []byte("{not json"), 0o644))

	cache := NewQueryCache()
	_, ok := cache.Lookup(root, "anything", 5)
	assert.False(t, ok)

	// The cache remains usable after discarding the corrupt file
	cache.Store(root, sampleEntry(1))
	_, ok = cache.Lookup(root, "login handler", 3)
	assert.True(t, ok)
}

func TestCacheClear(t *testing.T) {
	root := t.TempDir()
	cache := NewQueryCache()
	cache.Store(root, sampleEntry(5))

	cache.Clear(root)

	_, ok := cache.Lookup(root, "login handler", 3)
	assert.False(t, ok)
	_, err := os.Stat(filepath.Join(root, config.QueryCacheDir, config.QueryCacheFile))
	assert.True(t, os.IsNotExist(err))
}

func TestCacheKeyDeterministic(t *testing.T) {
	assert.Equal(t, cacheKey("q", 5), cacheKey("q", 5))
	assert.NotEqual(t, cacheKey("q", 5), cacheKey("q", 6))
	assert.NotEqual(t, cacheKey("a", 5), cacheKey("b", 5))
}
