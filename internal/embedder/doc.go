// Package embedder generates vector embeddings for file documents and
// search queries.
//
// Three providers are available: Ollama (default network provider), OpenAI,
// and a deterministic local fallback that requires no external service.
// NewFromEnv selects one based on CONTEXT_BROKER_EMBEDDING_PROVIDER and
// available credentials.
//
// All providers share an in-memory LRU cache keyed by content hash, and
// network providers retry transient failures with exponential backoff.
package embedder
