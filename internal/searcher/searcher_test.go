package searcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InSelfControll/context-broker-mcp/internal/embedder"
	"github.com/InSelfControll/context-broker-mcp/internal/indexer"
	"github.com/InSelfControll/context-broker-mcp/internal/tokens"
)

// featureEmbedder produces keyword-count vectors so relevance in tests is
// predictable: a query sharing words with a file scores higher.
type featureEmbedder struct {
	singleCalls int32
}

var featureWords = []string{"login", "auth", "database", "render", "config", "server"}

func (f *featureEmbedder) embed(text string) *embedder.Embedding {
	lower := strings.ToLower(text)
	vector := make([]float32, len(featureWords)+1)
	for i, word := range featureWords {
		vector[i] = float32(strings.Count(lower, word))
	}
	vector[len(featureWords)] = 0.01 // Never zero-magnitude
	return &embedder.Embedding{Vector: vector, Dimension: len(vector), Provider: "feature", Model: "feature-model"}
}

func (f *featureEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if err := embedder.ValidateRequest(req); err != nil {
		return nil, err
	}
	atomic.AddInt32(&f.singleCalls, 1)
	return f.embed(req.Text), nil
}

func (f *featureEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	if err := embedder.ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	out := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		out[i] = f.embed(text)
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: out, Provider: "feature", Model: "feature-model"}, nil
}

func (f *featureEmbedder) Dimension() int   { return len(featureWords) + 1 }
func (f *featureEmbedder) Provider() string { return "feature" }
func (f *featureEmbedder) Model() string    { return "feature-model" }
func (f *featureEmbedder) Close() error     { return nil }

func newTestSearcher(emb embedder.Embedder, cache *QueryCache) *Searcher {
	registry := indexer.NewRegistry(emb, tokens.NewCounter(), nil, indexer.Options{
		Extensions: map[string]struct{}{".go": {}},
		Workers:    2,
	})
	return New(registry, emb, cache)
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"auth.go":   "package app\n\n// login and auth handling\nfunc Login() {}\nfunc Auth() {}\n",
		"db.go":     "package app\n\n// database access\nfunc OpenDatabase() {}\n",
		"render.go": "package app\n\n// render templates\nfunc Render() {}\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}
	return root
}

func TestSearchRanksRelevantFirst(t *testing.T) {
	root := writeProject(t)
	s := newTestSearcher(&featureEmbedder{}, nil)

	resp, err := s.Search(context.Background(), root, "login auth", 2)
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	assert.Equal(t, "auth.go", resp.Results[0].Path)
	assert.Greater(t, resp.Results[0].Score, resp.Results[1].Score)
	assert.Equal(t, 3, resp.TotalFiles)
	assert.False(t, resp.FromCache)
}

func TestSearchDefaultTopK(t *testing.T) {
	root := writeProject(t)
	s := newTestSearcher(&featureEmbedder{}, nil)

	resp, err := s.Search(context.Background(), root, "database", 0)
	require.NoError(t, err)

	// Default of 5 is larger than the project, so every file returns
	assert.Len(t, resp.Results, 3)
}

func TestSearchTopKCapped(t *testing.T) {
	root := writeProject(t)
	s := newTestSearcher(&featureEmbedder{}, nil)

	resp, err := s.Search(context.Background(), root, "database", 100)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 3)
}

func TestSearchEmptyQuery(t *testing.T) {
	root := writeProject(t)
	s := newTestSearcher(&featureEmbedder{}, nil)

	_, err := s.Search(context.Background(), root, "   ", 5)
	assert.Error(t, err)
}

func TestSearchTrimsQuery(t *testing.T) {
	root := writeProject(t)
	s := newTestSearcher(&featureEmbedder{}, NewQueryCache())
	ctx := context.Background()

	_, err := s.Search(ctx, root, "database", 2)
	require.NoError(t, err)

	resp, err := s.Search(ctx, root, "  database  ", 2)
	require.NoError(t, err)
	assert.True(t, resp.FromCache, "whitespace variants should share a cache entry")
	assert.Equal(t, "database", resp.Query)
}

func TestSearchServedFromCache(t *testing.T) {
	root := writeProject(t)
	emb := &featureEmbedder{}
	s := newTestSearcher(emb, NewQueryCache())
	ctx := context.Background()

	first, err := s.Search(ctx, root, "login", 2)
	require.NoError(t, err)
	require.False(t, first.FromCache)

	second, err := s.Search(ctx, root, "login", 2)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, first.Stats, second.Stats)
	assert.Equal(t, int32(1), atomic.LoadInt32(&emb.singleCalls), "cache hit must not embed the query again")
}

func TestSearchCacheMissAfterFileChange(t *testing.T) {
	root := writeProject(t)
	s := newTestSearcher(&featureEmbedder{}, NewQueryCache())
	ctx := context.Background()

	_, err := s.Search(ctx, root, "login", 2)
	require.NoError(t, err)

	path := filepath.Join(root, "render.go")
	require.NoError(t, os.WriteFile(path, []byte("package app\n\nfunc RenderLogin() {}\n"), 0o644))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	resp, err := s.Search(ctx, root, "login", 2)
	require.NoError(t, err)
	assert.False(t, resp.FromCache, "any file change must invalidate cached rankings")
}

func TestSearchCacheDistinguishesTopK(t *testing.T) {
	root := writeProject(t)
	s := newTestSearcher(&featureEmbedder{}, NewQueryCache())
	ctx := context.Background()

	_, err := s.Search(ctx, root, "login", 1)
	require.NoError(t, err)

	resp, err := s.Search(ctx, root, "login", 2)
	require.NoError(t, err)
	assert.False(t, resp.FromCache)
	assert.Len(t, resp.Results, 2)
}

func TestSearchTokenStats(t *testing.T) {
	root := writeProject(t)
	s := newTestSearcher(&featureEmbedder{}, nil)

	resp, err := s.Search(context.Background(), root, "login", 1)
	require.NoError(t, err)

	stats := resp.Stats
	assert.Equal(t, stats.TotalTokens-stats.ContextTokens, stats.SavedTokens)
	if stats.TotalTokens > 0 {
		expected := float64(stats.SavedTokens) / float64(stats.TotalTokens) * 100
		assert.InDelta(t, expected, stats.SavedPercent, 0.001)
	}
	assert.Greater(t, stats.TotalTokens, stats.ContextTokens)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Zero-magnitude vectors score 0 instead of NaN
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))

	// Dimension mismatch scores 0
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
}

func TestRankTieBreaksOnPathLength(t *testing.T) {
	files := []struct {
		rel     string
		content string
	}{
		{"deeply/nested/auth.go", "package nested\nfunc Auth() {}\n"},
		{"auth.go", "package app\nfunc Auth() {}\n"},
	}

	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f.rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(f.content), 0o644))
	}

	s := newTestSearcher(&featureEmbedder{}, nil)
	resp, err := s.Search(context.Background(), root, "auth", 2)
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	if resp.Results[0].Score == resp.Results[1].Score {
		assert.Equal(t, "auth.go", resp.Results[0].Path, "equal scores should prefer the shorter path")
	}
}
