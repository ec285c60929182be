package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Environment variable names. These match the variables the broker has
// always honored; the TOML file is an optional convenience layered beneath
// them.
const (
	EnvProjectRoot  = "CONTEXT_BROKER_PROJECT_ROOT"
	EnvDefaultQuery = "CONTEXT_BROKER_DEFAULT_QUERY"
	EnvStorageMode  = "CONTEXT_BROKER_STORAGE_MODE"
	EnvStorageDir   = "CONTEXT_BROKER_STORAGE_DIR"
	EnvTopK         = "CONTEXT_BROKER_TOP_K"
	EnvWatchFiles   = "CONTEXT_BROKER_WATCH"
	EnvEmbedCache   = "CONTEXT_BROKER_EMBED_CACHE"
	EnvConfigFile   = "CONTEXT_BROKER_CONFIG"
)

// Fixed layout constants.
const (
	// InProjectFolder is the directory name used for in-project storage.
	InProjectFolder = ".context-broker"

	// QueryCacheDir and QueryCacheFile locate the durable query-cache side
	// file inside a project root.
	QueryCacheDir  = ".cache"
	QueryCacheFile = "context-broker.json"

	// ConfigFileName is the optional per-directory configuration file.
	ConfigFileName = ".context-broker.toml"

	// DefaultTopK is the number of results returned when the caller does not
	// override it.
	DefaultTopK = 5

	// DefaultQuery drives auto_search and the auto-context resource.
	DefaultQuery = "main entry point configuration setup"
)

// DefaultExtensions is the fixed supported-extension set for indexing.
var DefaultExtensions = []string{
	// Documentation
	".md",
	// Configuration
	".json", ".toml", ".yaml", ".yml", ".xml", ".properties", ".gradle",
	// Programming languages
	".go", ".py", ".ts", ".js", ".rs", ".java",
	// Web
	".html", ".css", ".scss", ".sass", ".less",
	// Shell and scripts
	".sh", ".bash", ".zsh", ".fish", ".ps1",
	// SQL and data
	".sql", ".graphql", ".prisma",
}

// Config is the configuration surface consumed by the engine. The engine
// does not own it: it is assembled once at startup and passed down.
type Config struct {
	ProjectRoot    string   `toml:"project_root"`
	DefaultQuery   string   `toml:"default_query"`
	StorageMode    string   `toml:"storage_mode"` // global, in-project, both
	StorageBaseDir string   `toml:"storage_base_dir"`
	TopK           int      `toml:"top_k"`
	Extensions     []string `toml:"extensions"`
	Workers        int      `toml:"workers"`
	WatchFiles     bool     `toml:"watch_files"`
	EmbedCache     bool     `toml:"embed_cache"`
}

// Default returns the built-in configuration.
func Default() *Config {
	base := InProjectFolder
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, InProjectFolder)
	}
	return &Config{
		DefaultQuery:   DefaultQuery,
		StorageMode:    "both",
		StorageBaseDir: base,
		TopK:           DefaultTopK,
		Extensions:     append([]string(nil), DefaultExtensions...),
		Workers:        runtime.NumCPU(),
		EmbedCache:     true,
	}
}

// Load assembles the configuration: defaults, then the optional TOML file,
// then environment variables. Later sources win.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv(EnvConfigFile)
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			candidate := filepath.Join(wd, ConfigFileName)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if cfg.TopK < 1 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvProjectRoot); v != "" {
		c.ProjectRoot = v
	}
	if v := os.Getenv(EnvDefaultQuery); v != "" {
		c.DefaultQuery = v
	}
	if v := os.Getenv(EnvStorageMode); v != "" {
		c.StorageMode = v
	}
	if v := os.Getenv(EnvStorageDir); v != "" {
		c.StorageBaseDir = v
	}
	if v := os.Getenv(EnvTopK); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.TopK = n
		}
	}
	if v := os.Getenv(EnvWatchFiles); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.WatchFiles = b
		}
	}
	if v := os.Getenv(EnvEmbedCache); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.EmbedCache = b
		}
	}
}

// ExtensionSet returns the supported extensions as a lookup set with
// lowercase keys.
func (c *Config) ExtensionSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Extensions))
	for _, ext := range c.Extensions {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return set
}
