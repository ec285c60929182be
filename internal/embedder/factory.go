package embedder

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// EnvProvider selects the embedding provider: ollama, openai, or local.
const EnvProvider = "CONTEXT_BROKER_EMBEDDING_PROVIDER"

// DefaultCacheSize is the in-memory embedding cache capacity
const DefaultCacheSize = 1000

// NewFromEnv creates an embedder based on environment configuration.
//
// Selection order:
//  1. CONTEXT_BROKER_EMBEDDING_PROVIDER if set (ollama, openai, local)
//  2. openai when OPENAI_API_KEY is present
//  3. ollama when CONTEXT_BROKER_OLLAMA_HOST is present
//
// The local provider is used as a last resort so the broker always starts.
func NewFromEnv() (Embedder, error) {
	cache := NewCache(DefaultCacheSize)

	provider := strings.ToLower(strings.TrimSpace(os.Getenv(EnvProvider)))
	switch provider {
	case ProviderOllama:
		return NewOllamaProvider("", cache)
	case ProviderOpenAI:
		return NewOpenAIProvider("", cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	case "":
		// fall through to auto-detection
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNoProviderEnabled, provider)
	}

	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return NewOpenAIProvider("", cache)
	}
	if os.Getenv(EnvOllamaHost) != "" {
		return NewOllamaProvider("", cache)
	}

	log.Printf("no embedding provider configured, using deterministic local embeddings")
	return NewLocalProvider(cache)
}
