package searcher

import (
	"context"
	"fmt"
	"log"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/InSelfControll/context-broker-mcp/internal/config"
	"github.com/InSelfControll/context-broker-mcp/internal/embedder"
	"github.com/InSelfControll/context-broker-mcp/internal/indexer"
	"github.com/InSelfControll/context-broker-mcp/pkg/types"
)

// Response is the outcome of one search.
type Response struct {
	Query       string
	Project     string
	ProjectRoot string
	Results     []types.SearchResult
	TotalFiles  int
	Stats       types.TokenStats
	FromCache   bool
}

// Searcher ranks indexed files against natural-language queries.
type Searcher struct {
	registry *indexer.Registry
	embedder embedder.Embedder
	cache    *QueryCache
}

// New creates a searcher. The query cache may be nil to disable caching.
func New(registry *indexer.Registry, emb embedder.Embedder, cache *QueryCache) *Searcher {
	return &Searcher{
		registry: registry,
		embedder: emb,
		cache:    cache,
	}
}

// Search returns the topK most relevant files under root for the query.
// topK values below 1 fall back to the default. Identical repeated queries
// against an unchanged tree are served from the cache.
func (s *Searcher) Search(ctx context.Context, root, query string, topK int) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if topK < 1 {
		topK = config.DefaultTopK
	}

	idx, err := s.registry.GetOrBuild(ctx, root)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if resp, ok := s.fromCache(idx, query, topK); ok {
			logTokenReport(resp, true)
			return resp, nil
		}
	}

	queryEmb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	ranked := rank(idx.Files, queryEmb.Vector)
	if topK > len(ranked) {
		topK = len(ranked)
	}
	top := ranked[:topK]

	results := make([]types.SearchResult, len(top))
	contextTokens := 0
	for i, hit := range top {
		rec := hit.record
		results[i] = types.SearchResult{
			Path:    rec.RelPath,
			AbsPath: rec.AbsPath,
			Content: rec.Content,
			Score:   hit.score,
			Tokens:  rec.Tokens,
		}
		contextTokens += rec.Tokens
	}

	resp := &Response{
		Query:       query,
		Project:     filepath.Base(idx.Root),
		ProjectRoot: idx.Root,
		Results:     results,
		TotalFiles:  len(idx.Files),
		Stats:       types.ComputeTokenStats(idx.TotalTokens, contextTokens),
	}

	if s.cache != nil {
		s.cache.Store(idx.Root, makeEntry(idx, query, topK, results))
	}

	logTokenReport(resp, false)
	return resp, nil
}

// fromCache reconstructs a response from a valid cache entry.
func (s *Searcher) fromCache(idx *indexer.ProjectIndex, query string, topK int) (*Response, bool) {
	entry, ok := s.cache.Lookup(idx.Root, query, topK)
	if !ok || !entryValid(entry, idx.Fingerprint, idx.FileMtimes()) {
		return nil, false
	}

	results := make([]types.SearchResult, 0, len(entry.Results))
	contextTokens := 0
	for _, cached := range entry.Results {
		rec := idx.Lookup(cached.Path)
		if rec == nil {
			return nil, false
		}
		results = append(results, types.SearchResult{
			Path:    rec.RelPath,
			AbsPath: rec.AbsPath,
			Content: rec.Content,
			Score:   cached.Score,
			Tokens:  rec.Tokens,
		})
		contextTokens += rec.Tokens
	}

	return &Response{
		Query:       query,
		Project:     filepath.Base(idx.Root),
		ProjectRoot: idx.Root,
		Results:     results,
		TotalFiles:  len(idx.Files),
		Stats:       types.ComputeTokenStats(idx.TotalTokens, contextTokens),
		FromCache:   true,
	}, true
}

// hit pairs a record with its similarity score during ranking.
type hit struct {
	record *types.FileRecord
	score  float64
}

// rank orders files by cosine similarity, descending. Ties break toward
// the shorter relative path, then lexicographically, so results are
// deterministic run to run.
func rank(files []types.FileRecord, queryVector []float32) []hit {
	hits := make([]hit, len(files))
	for i := range files {
		hits[i] = hit{
			record: &files[i],
			score:  cosineSimilarity(queryVector, files[i].Embedding),
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		pi, pj := hits[i].record.RelPath, hits[j].record.RelPath
		if len(pi) != len(pj) {
			return len(pi) < len(pj)
		}
		return pi < pj
	})
	return hits
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Mismatched dimensions and zero-magnitude vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// logTokenReport writes the context savings summary to stderr. Stdout is
// reserved for the protocol stream.
func logTokenReport(resp *Response, cached bool) {
	source := "ranked"
	if cached {
		source = "cached"
	}
	log.Printf("query %q (%s): %d/%d files, %d of %d tokens (%.1f%% saved)",
		resp.Query, source, len(resp.Results), resp.TotalFiles,
		resp.Stats.ContextTokens, resp.Stats.TotalTokens, resp.Stats.SavedPercent)
}
