package project

import (
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Marker is a file or directory whose presence indicates a project root,
// weighted by how strong an indicator it is.
type Marker struct {
	Name   string
	Weight int
}

// rootScoreCutoff short-circuits the upward walk: a directory scoring at
// least this much (a version-control marker) is definitely the root.
const rootScoreCutoff = 100

// DefaultMarkers returns the built-in marker table.
func DefaultMarkers() []Marker {
	return []Marker{
		{".git", 100},
		{"pyproject.toml", 50},
		{"package.json", 50},
		{"Cargo.toml", 50},
		{"go.mod", 50},
		{"pom.xml", 40},
		{"build.gradle", 40},
		{"CMakeLists.txt", 40},
		{"setup.py", 30},
		{"requirements.txt", 30},
		{"Makefile", 20},
		{"Dockerfile", 20},
		{"docker-compose.yml", 20},
		{".gitignore", 10},
		{"README.md", 10},
		{"LICENSE", 10},
	}
}

// Resolver resolves project roots. Detection itself is a pure function of
// the directory tree; the resolver additionally memoizes the mapping from a
// starting path to its detected root for the process lifetime.
type Resolver struct {
	markers     []Marker
	defaultRoot string

	mu   sync.RWMutex
	memo map[string]string
}

// NewResolver creates a resolver. markers may be nil to use the default
// table; defaultRoot, when non-empty, takes precedence over auto-detection.
func NewResolver(markers []Marker, defaultRoot string) *Resolver {
	if markers == nil {
		markers = DefaultMarkers()
	}
	return &Resolver{
		markers:     markers,
		defaultRoot: defaultRoot,
		memo:        make(map[string]string),
	}
}

// Resolve determines the project root for a request. Priority: the explicit
// argument, the configured default root, auto-detection from the working
// directory, and finally the working directory itself. Resolution never
// fails; the weakest case falls back to the starting path.
func (r *Resolver) Resolve(explicit string) string {
	if explicit != "" {
		if abs, err := filepath.Abs(explicit); err == nil {
			return abs
		}
		return explicit
	}
	if r.defaultRoot != "" {
		if abs, err := filepath.Abs(r.defaultRoot); err == nil {
			return abs
		}
		return r.defaultRoot
	}
	cwd, err := os.Getwd()
	if err != nil {
		log.Printf("[project] cannot determine working directory: %v", err)
		return "."
	}
	return r.Detect(cwd)
}

// Detect walks upward from start (inclusive) scoring each directory by the
// markers present in it. The strictly highest score wins; ties prefer the
// directory closer to start. When nothing scores above zero, start itself is
// returned.
func (r *Resolver) Detect(start string) string {
	abs, err := filepath.Abs(start)
	if err != nil {
		return start
	}

	r.mu.RLock()
	cached, ok := r.memo[abs]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	root := findRoot(abs, r.markers)

	r.mu.Lock()
	r.memo[abs] = root
	r.mu.Unlock()
	return root
}

// Reset clears the start-path memo.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.memo = make(map[string]string)
	r.mu.Unlock()
}

func findRoot(start string, markers []Marker) string {
	best := ""
	bestScore := 0

	current := start
	for {
		score := scoreDir(current, markers)
		if score > bestScore {
			bestScore = score
			best = current
			if score >= rootScoreCutoff {
				break
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	if best == "" {
		return start
	}
	return best
}

func scoreDir(dir string, markers []Marker) int {
	score := 0
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(dir, m.Name)); err == nil {
			score += m.Weight
		}
	}
	return score
}

// Name extracts a project name from its root path.
func Name(root string) string {
	name := filepath.Base(filepath.Clean(root))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "unknown"
	}
	return name
}
