package mcp

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/InSelfControll/context-broker-mcp/internal/config"
	"github.com/InSelfControll/context-broker-mcp/internal/embedcache"
	"github.com/InSelfControll/context-broker-mcp/internal/embedder"
	"github.com/InSelfControll/context-broker-mcp/internal/indexer"
	"github.com/InSelfControll/context-broker-mcp/internal/project"
	"github.com/InSelfControll/context-broker-mcp/internal/searcher"
	"github.com/InSelfControll/context-broker-mcp/internal/storage"
	"github.com/InSelfControll/context-broker-mcp/internal/tokens"
)

const (
	// ServerName is the MCP server name
	ServerName = "context-broker"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	cfg      *config.Config
	resolver *project.Resolver
	registry *indexer.Registry
	searcher *searcher.Searcher
	router   *storage.Router

	embedder embedder.Embedder
	store    *embedcache.Store

	mu       sync.Mutex
	watchers map[string]*indexer.Watcher
}

// NewServer assembles the full engine behind an MCP surface.
func NewServer(cfg *config.Config) (*Server, error) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("initializing embedder: %w", err)
	}

	var store *embedcache.Store
	if cfg.EmbedCache {
		path := filepath.Join(cfg.StorageBaseDir, "embeddings.db")
		store, err = embedcache.Open(path)
		if err != nil {
			// The durable cache is an optimization; run without it
			log.Printf("durable embedding cache unavailable: %v", err)
			store = nil
		}
	}

	counter := tokens.NewCounter()
	registry := indexer.NewRegistry(emb, counter, store, indexer.Options{
		Extensions: cfg.ExtensionSet(),
		Workers:    cfg.Workers,
	})

	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			ServerVersion,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithPromptCapabilities(false),
		),
		cfg:      cfg,
		resolver: project.NewResolver(project.DefaultMarkers(), cfg.ProjectRoot),
		registry: registry,
		searcher: searcher.New(registry, emb, searcher.NewQueryCache()),
		router:   storage.NewRouter(cfg.StorageBaseDir, storage.ParseMode(cfg.StorageMode)),
		embedder: emb,
		store:    store,
		watchers: make(map[string]*indexer.Watcher),
	}

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	defer s.shutdown()
	return server.ServeStdio(s.mcp)
}

func (s *Server) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watchers {
		_ = w.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
	_ = s.embedder.Close()
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchCodebaseTool(), s.handleSearchCodebase)
	s.mcp.AddTool(autoSearchTool(), s.handleAutoSearch)
	s.mcp.AddTool(saveSearchResultsTool(), s.handleSaveSearchResults)
	s.mcp.AddTool(listSavedResultsTool(), s.handleListSavedResults)
	s.mcp.AddTool(loadSavedResultsTool(), s.handleLoadSavedResults)
	s.mcp.AddTool(getStorageConfigTool(), s.handleGetStorageConfig)
}

// ensureWatcher starts a filesystem watcher for root on first use when
// watching is enabled.
func (s *Server) ensureWatcher(root string) {
	if !s.cfg.WatchFiles {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watchers[root]; ok {
		return
	}
	w, err := indexer.NewWatcher(s.registry, root)
	if err != nil {
		log.Printf("could not watch %s: %v", root, err)
		return
	}
	s.watchers[root] = w
}
