package searcher

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/InSelfControll/context-broker-mcp/internal/config"
	"github.com/InSelfControll/context-broker-mcp/internal/indexer"
	"github.com/InSelfControll/context-broker-mcp/pkg/types"
)

// CachedResult is the per-file portion of a cache entry. Content is not
// cached; it is re-read from the live index on a hit.
type CachedResult struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// Entry is one cached query result set. Validity is decided by entryValid,
// never by age.
type Entry struct {
	Query            string           `json:"query"`
	TopK             int              `json:"top_k"`
	Results          []CachedResult   `json:"results"`
	FileMtimes       map[string]int64 `json:"file_mtimes"`
	IndexFingerprint uint64           `json:"index_fingerprint"`
	CreatedAt        time.Time        `json:"created_at"`
}

// QueryCache remembers ranked results per project root and persists them to
// a side file inside the root, so repeat queries skip ranking even across
// process restarts.
type QueryCache struct {
	mu     sync.Mutex
	roots  map[string]map[string]Entry
	loaded map[string]bool
}

// NewQueryCache creates an empty cache. Per-root state is loaded from disk
// lazily on first access.
func NewQueryCache() *QueryCache {
	return &QueryCache{
		roots:  make(map[string]map[string]Entry),
		loaded: make(map[string]bool),
	}
}

// Lookup returns the entry for (root, query, topK) if one exists. The
// caller decides validity against the current index.
func (c *QueryCache) Lookup(root, query string, topK int) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loadLocked(root)
	entry, ok := c.roots[root][cacheKey(query, topK)]
	return entry, ok
}

// Store records an entry for root and persists the root's cache file.
func (c *QueryCache) Store(root string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loadLocked(root)
	if c.roots[root] == nil {
		c.roots[root] = make(map[string]Entry)
	}
	c.roots[root][cacheKey(entry.Query, entry.TopK)] = entry

	if err := c.saveLocked(root); err != nil {
		// Persistence is best effort; the in-memory entry still serves hits
		log.Printf("query cache save failed for %s: %v", root, err)
	}
}

// Clear drops all entries for root, in memory and on disk.
func (c *QueryCache) Clear(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.roots, root)
	c.loaded[root] = true
	_ = os.Remove(cachePath(root))
}

// cacheKey derives the map key for a (query, topK) pair. The query is
// expected to be trimmed by the caller.
func cacheKey(query string, topK int) string {
	h := xxhash.New()
	_, _ = h.WriteString(query)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(strconv.Itoa(topK))
	return strconv.FormatUint(h.Sum64(), 16)
}

// entryValid reports whether a cached entry may serve the current index
// state. The fingerprint comparison rejects any change to the file set or
// any modification time; the per-file check additionally rejects entries
// whose result files have vanished or moved.
func entryValid(entry Entry, fingerprint uint64, mtimes map[string]int64) bool {
	if entry.IndexFingerprint != fingerprint {
		return false
	}
	for path, mtime := range entry.FileMtimes {
		current, ok := mtimes[path]
		if !ok || current != mtime {
			return false
		}
	}
	return true
}

// makeEntry builds a cache entry from fresh search results.
func makeEntry(idx *indexer.ProjectIndex, query string, topK int, results []types.SearchResult) Entry {
	cached := make([]CachedResult, len(results))
	fileMtimes := make(map[string]int64, len(results))
	for i, res := range results {
		cached[i] = CachedResult{Path: res.Path, Score: res.Score}
		if rec := idx.Lookup(res.Path); rec != nil {
			fileMtimes[res.Path] = rec.ModTime.UnixNano()
		}
	}
	return Entry{
		Query:            query,
		TopK:             topK,
		Results:          cached,
		FileMtimes:       fileMtimes,
		IndexFingerprint: idx.Fingerprint,
		CreatedAt:        time.Now(),
	}
}

// cachePath locates the per-root cache file.
func cachePath(root string) string {
	return filepath.Join(root, config.QueryCacheDir, config.QueryCacheFile)
}

// loadLocked reads the root's cache file once. A missing or corrupt file
// starts the root empty.
func (c *QueryCache) loadLocked(root string) {
	if c.loaded[root] {
		return
	}
	c.loaded[root] = true

	data, err := os.ReadFile(cachePath(root))
	if err != nil {
		return
	}

	entries := make(map[string]Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("discarding corrupt query cache for %s: %v", root, err)
		return
	}
	c.roots[root] = entries
}

// saveLocked writes the root's entries atomically via a temp file rename.
func (c *QueryCache) saveLocked(root string) error {
	path := cachePath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c.roots[root], "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}
