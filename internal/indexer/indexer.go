package indexer

import (
	"context"
	"encoding/binary"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/InSelfControll/context-broker-mcp/internal/embedcache"
	"github.com/InSelfControll/context-broker-mcp/internal/embedder"
	"github.com/InSelfControll/context-broker-mcp/internal/ignore"
	"github.com/InSelfControll/context-broker-mcp/internal/tokens"
	"github.com/InSelfControll/context-broker-mcp/pkg/types"
)

const (
	// maxFileBytes caps how much of a file is read for indexing.
	maxFileBytes = 256 << 10

	// snippetLen is the maximum content length included in the text handed
	// to the embedding provider.
	snippetLen = 3000

	// defaultBatchSize is the number of documents per embedding request.
	defaultBatchSize = 32
)

// ProjectIndex is an immutable snapshot of one project's indexed files.
// Files are sorted by relative path. A published index is never mutated;
// rebuilds produce a fresh snapshot.
type ProjectIndex struct {
	Root        string
	Files       []types.FileRecord
	TotalTokens int
	Fingerprint uint64
	BuiltAt     time.Time
}

// FileMtimes returns a map of relative path to modification time in
// nanoseconds, used by the query cache to validate entries.
func (idx *ProjectIndex) FileMtimes() map[string]int64 {
	m := make(map[string]int64, len(idx.Files))
	for i := range idx.Files {
		m[idx.Files[i].RelPath] = idx.Files[i].ModTime.UnixNano()
	}
	return m
}

// Lookup returns the record for the given relative path, or nil.
func (idx *ProjectIndex) Lookup(relPath string) *types.FileRecord {
	i := sort.Search(len(idx.Files), func(i int) bool {
		return idx.Files[i].RelPath >= relPath
	})
	if i < len(idx.Files) && idx.Files[i].RelPath == relPath {
		return &idx.Files[i]
	}
	return nil
}

// Options configures a Registry.
type Options struct {
	Extensions map[string]struct{} // Lowercase extensions with leading dot
	Workers    int                 // Concurrent embedding requests (default: NumCPU)
	BatchSize  int                 // Documents per embedding request (default: 32)
}

// Registry builds and caches one ProjectIndex per project root. Rebuilds
// for the same root are serialized: concurrent callers share a single
// in-flight build instead of racing.
type Registry struct {
	embedder   embedder.Embedder
	counter    *tokens.Counter
	store      *embedcache.Store // Optional durable embedding cache
	extensions map[string]struct{}
	workers    int
	batchSize  int

	group   singleflight.Group
	mu      sync.Mutex
	indexes map[string]*ProjectIndex
}

// NewRegistry creates an index registry. The durable store may be nil, in
// which case only in-memory embedding reuse applies.
func NewRegistry(emb embedder.Embedder, counter *tokens.Counter, store *embedcache.Store, opts Options) *Registry {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Registry{
		embedder:   emb,
		counter:    counter,
		store:      store,
		extensions: opts.Extensions,
		workers:    workers,
		batchSize:  batchSize,
		indexes:    make(map[string]*ProjectIndex),
	}
}

// GetOrBuild returns the current index for root, rebuilding it first when
// the file set or any modification time changed since the last build.
//
// The staleness check is a filesystem scan, not a content read, so the
// common unchanged case is cheap. Rebuilds run detached from the caller's
// context: cancellation abandons the wait but lets the shared build finish
// for the next caller.
func (r *Registry) GetOrBuild(ctx context.Context, root string) (*ProjectIndex, error) {
	root = filepath.Clean(root)

	scanned, err := r.scan(root)
	if err != nil {
		return nil, err
	}
	fp := fingerprint(scanned)

	r.mu.Lock()
	current := r.indexes[root]
	r.mu.Unlock()

	if current != nil && current.Fingerprint == fp {
		return current, nil
	}

	ch := r.group.DoChan(root, func() (interface{}, error) {
		return r.rebuild(context.WithoutCancel(ctx), root)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ProjectIndex), nil
	}
}

// Invalidate drops the cached index for root. The next GetOrBuild rebuilds.
func (r *Registry) Invalidate(root string) {
	root = filepath.Clean(root)
	r.mu.Lock()
	delete(r.indexes, root)
	r.mu.Unlock()
}

// Reset drops all cached indexes.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.indexes = make(map[string]*ProjectIndex)
	r.mu.Unlock()
}

// scannedFile is a file discovered during the cheap staleness scan.
type scannedFile struct {
	relPath string
	absPath string
	modTime time.Time
}

// scan walks the project tree and returns the indexable files, sorted by
// relative path. Ignore rules come from .gitignore and .dockerignore plus
// the built-in exclusions; symlinks are never followed.
func (r *Registry) scan(root string) ([]scannedFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidPath, root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", types.ErrInvalidPath, root)
	}

	rules := ignore.FromProject(root)

	var files []scannedFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rules.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks are skipped to avoid escaping the project tree
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := r.extensions[ext]; !ok {
			return nil
		}
		if rules.Match(rel, false) {
			return nil
		}

		fi, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}

		files = append(files, scannedFile{
			relPath: rel,
			absPath: path,
			modTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scanning %s: %v", types.ErrIndexBuild, root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].relPath < files[j].relPath })
	return files, nil
}

// fingerprint summarizes a scan as a single hash over every (path, mtime)
// pair. Any added, removed, or touched file changes the fingerprint.
func fingerprint(files []scannedFile) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, f := range files {
		_, _ = h.WriteString(f.relPath)
		_, _ = h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(f.modTime.UnixNano()))
		_, _ = h.Write(buf[:])
		_, _ = h.Write([]byte{'\n'})
	}
	return h.Sum64()
}

// rebuild constructs a fresh index for root. It re-checks freshness first
// so callers collapsed onto one in-flight build do not trigger duplicate
// work after the winner finishes.
func (r *Registry) rebuild(ctx context.Context, root string) (*ProjectIndex, error) {
	scanned, err := r.scan(root)
	if err != nil {
		return nil, err
	}
	fp := fingerprint(scanned)

	r.mu.Lock()
	prev := r.indexes[root]
	r.mu.Unlock()

	if prev != nil && prev.Fingerprint == fp {
		return prev, nil
	}

	if len(scanned) == 0 {
		return nil, fmt.Errorf("%w: no indexable files under %s", types.ErrNoFiles, root)
	}

	start := time.Now()
	records, err := r.buildRecords(ctx, prev, scanned)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no readable files under %s", types.ErrNoFiles, root)
	}

	totalTokens := 0
	for i := range records {
		totalTokens += records[i].Tokens
	}

	idx := &ProjectIndex{
		Root:        root,
		Files:       records,
		TotalTokens: totalTokens,
		Fingerprint: fp,
		BuiltAt:     time.Now(),
	}

	r.mu.Lock()
	r.indexes[root] = idx
	r.mu.Unlock()

	log.Printf("indexed %s: %d files, %d tokens in %s", root, len(records), totalTokens, time.Since(start).Round(time.Millisecond))
	return idx, nil
}

// buildRecords reads file contents and fills embeddings, reusing vectors
// from the previous index and the durable cache where content is unchanged.
func (r *Registry) buildRecords(ctx context.Context, prev *ProjectIndex, scanned []scannedFile) ([]types.FileRecord, error) {
	model := r.embedder.Model()

	records := make([]types.FileRecord, 0, len(scanned))
	var pending []int // Indices into records that still need a provider call

	for _, f := range scanned {
		// A record with an identical mtime carries over wholesale
		if prev != nil {
			if old := prev.Lookup(f.relPath); old != nil && old.ModTime.Equal(f.modTime) {
				records = append(records, *old)
				continue
			}
		}

		content, ok := readContent(f.absPath)
		if !ok {
			continue
		}

		rec := types.FileRecord{
			RelPath:     f.relPath,
			AbsPath:     f.absPath,
			ModTime:     f.modTime,
			ContentHash: embedder.ComputeHash(content),
			Content:     content,
			Tokens:      r.counter.Count(content),
		}

		// Same content under a new mtime keeps its old vector
		if prev != nil {
			if old := prev.Lookup(f.relPath); old != nil && old.ContentHash == rec.ContentHash {
				rec.Embedding = old.Embedding
				records = append(records, rec)
				continue
			}
		}

		if r.store != nil {
			if vec, hit, err := r.store.Get(ctx, rec.ContentHash, model); err == nil && hit {
				rec.Embedding = vec
				records = append(records, rec)
				continue
			}
		}

		records = append(records, rec)
		pending = append(pending, len(records)-1)
	}

	if err := r.embedPending(ctx, records, pending, model); err != nil {
		return nil, err
	}
	return records, nil
}

// embedPending generates embeddings for the given record indices in
// concurrent batches.
func (r *Registry) embedPending(ctx context.Context, records []types.FileRecord, pending []int, model string) error {
	if len(pending) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for start := 0; start < len(pending); start += r.batchSize {
		end := start + r.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, idx := range batch {
				texts[i] = embedDocument(records[idx].RelPath, records[idx].Content)
			}

			resp, err := r.embedder.GenerateBatch(gctx, embedder.BatchEmbeddingRequest{Texts: texts})
			if err != nil {
				return fmt.Errorf("%w: embedding batch: %v", types.ErrIndexBuild, err)
			}

			for i, idx := range batch {
				records[idx].Embedding = resp.Embeddings[i].Vector
				if r.store != nil {
					if err := r.store.Put(gctx, records[idx].ContentHash, model, records[idx].Embedding); err != nil {
						log.Printf("embedding cache write failed for %s: %v", records[idx].RelPath, err)
					}
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// embedDocument frames a file for the embedding provider. Only the leading
// portion of the content participates; path context helps queries that
// mention file or package names.
func embedDocument(relPath, content string) string {
	if len(content) > snippetLen {
		content = content[:snippetLen]
	}
	return "File: " + relPath + "\nContent: " + content
}

// readContent reads a file for indexing. Binary and non-UTF-8 files are
// skipped; oversized files are truncated at a rune boundary.
func readContent(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("skipping unreadable file %s: %v", path, err)
		return "", false
	}
	if !utf8.Valid(data) {
		log.Printf("skipping non-text file %s", path)
		return "", false
	}
	if len(data) > maxFileBytes {
		data = data[:maxFileBytes]
		// Drop a trailing partial rune left by the cut
		for len(data) > 0 {
			r, size := utf8.DecodeLastRune(data)
			if r != utf8.RuneError || size > 1 {
				break
			}
			data = data[:len(data)-1]
		}
	}
	return string(data), true
}
