// Package storage persists saved search results as JSON documents across
// three placement modes: a global base directory, an in-project folder, or
// both. In "both" mode saves prefer the in-project folder, loads fall back
// from in-project to global, and listings merge the two with in-project
// entries winning name collisions.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/InSelfControll/context-broker-mcp/internal/config"
	"github.com/InSelfControll/context-broker-mcp/pkg/types"
)

// Mode selects where documents are placed.
type Mode int

const (
	ModeGlobal Mode = iota
	ModeInProject
	ModeBoth
)

// markerFile is dropped into every storage directory so users can tell what
// created it.
const markerFile = ".context-broker-marker"

// Source labels for list entries.
const (
	SourceInProject = "in-project"
	SourceGlobal    = "global"
)

// ParseMode maps a configuration string to a Mode. Unrecognized values fall
// back to ModeBoth, the default.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "global":
		return ModeGlobal
	case "in-project":
		return ModeInProject
	default:
		return ModeBoth
	}
}

func (m Mode) String() string {
	switch m {
	case ModeGlobal:
		return "global"
	case ModeInProject:
		return "in-project"
	default:
		return "both"
	}
}

// ListEntry is one saved document in a listing, tagged with where it lives.
type ListEntry struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// Router routes document operations to the right directory for the
// configured mode.
type Router struct {
	baseDir string
	mode    Mode
}

// NewRouter creates a router. baseDir is the global storage base, typically
// ~/.context-broker.
func NewRouter(baseDir string, mode Mode) *Router {
	return &Router{baseDir: baseDir, mode: mode}
}

// Mode returns the configured placement mode.
func (r *Router) Mode() Mode { return r.mode }

// Save writes doc as pretty-printed JSON and returns the path written.
// The write is atomic: a failure leaves no partial file behind.
func (r *Router) Save(projectName, projectRoot, subdir, filename string, doc *types.SavedResultDocument) (string, error) {
	name, err := sanitizeFilename(filename)
	if err != nil {
		return "", err
	}

	dir, err := r.writeDir(projectName, projectRoot, subdir)
	if err != nil {
		return "", err
	}
	if err := r.ensureDir(dir, projectName); err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: encoding document: %v", types.ErrStorageWrite, err)
	}
	if err := atomicWrite(path, data); err != nil {
		return "", err
	}

	log.Printf("saved results to %s", path)
	return path, nil
}

// Load reads a saved document. In "both" mode the in-project copy wins when
// both exist. A missing document in every candidate location returns
// ErrNotFound.
func (r *Router) Load(projectName, projectRoot, subdir, filename string) (*types.SavedResultDocument, string, error) {
	name, err := sanitizeFilename(filename)
	if err != nil {
		return nil, "", err
	}

	dirs, err := r.readDirs(projectName, projectRoot, subdir)
	if err != nil {
		return nil, "", err
	}

	for _, dir := range dirs {
		path := filepath.Join(dir.path, name)
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			if errors.Is(readErr, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("reading %s: %w", path, readErr)
		}

		var doc types.SavedResultDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, "", fmt.Errorf("parsing %s: %w", path, err)
		}
		return &doc, path, nil
	}

	return nil, "", fmt.Errorf("%w: %s", types.ErrNotFound, name)
}

// List returns the saved documents visible under the current mode, sorted
// by name. In "both" mode entries merge across locations and an in-project
// document shadows a global one with the same name.
func (r *Router) List(projectName, projectRoot, subdir string) ([]ListEntry, error) {
	dirs, err := r.readDirs(projectName, projectRoot, subdir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var entries []ListEntry
	for _, dir := range dirs {
		for _, name := range listJSON(dir.path) {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			entries = append(entries, ListEntry{Name: name, Source: dir.source})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ConfigInfo describes the active storage configuration for diagnostics.
func (r *Router) ConfigInfo() map[string]any {
	return map[string]any{
		"mode":              r.mode.String(),
		"base_dir":          r.baseDir,
		"in_project_folder": config.InProjectFolder,
		"modes": map[string]string{
			"global":     "Store only in the centralized location",
			"in-project": "Store only in the project folder",
			"both":       "Use both, prefer the project folder (default)",
		},
	}
}

// writeDir picks the destination directory for a save.
func (r *Router) writeDir(projectName, projectRoot, subdir string) (string, error) {
	local, global, err := r.dirs(projectName, projectRoot, subdir)
	if err != nil {
		return "", err
	}

	switch r.mode {
	case ModeGlobal:
		return global, nil
	case ModeInProject:
		if local == "" {
			log.Printf("project root required for in-project storage, falling back to global")
			return global, nil
		}
		return local, nil
	default:
		if local != "" {
			return local, nil
		}
		return global, nil
	}
}

// taggedDir pairs a candidate directory with its source label.
type taggedDir struct {
	path   string
	source string
}

// readDirs returns candidate directories for loads and listings, in
// priority order.
func (r *Router) readDirs(projectName, projectRoot, subdir string) ([]taggedDir, error) {
	local, global, err := r.dirs(projectName, projectRoot, subdir)
	if err != nil {
		return nil, err
	}

	switch r.mode {
	case ModeGlobal:
		return []taggedDir{{global, SourceGlobal}}, nil
	case ModeInProject:
		if local == "" {
			return []taggedDir{{global, SourceGlobal}}, nil
		}
		return []taggedDir{{local, SourceInProject}}, nil
	default:
		if local == "" {
			return []taggedDir{{global, SourceGlobal}}, nil
		}
		return []taggedDir{{local, SourceInProject}, {global, SourceGlobal}}, nil
	}
}

// dirs resolves the in-project and global directories for a project. The
// in-project directory is empty when no project root is known.
func (r *Router) dirs(projectName, projectRoot, subdir string) (local, global string, err error) {
	if projectName == "" {
		return "", "", fmt.Errorf("%w: empty project name", types.ErrInvalidPath)
	}
	if filepath.Base(projectName) != projectName || projectName == "." || projectName == ".." {
		return "", "", fmt.Errorf("%w: project name %q", types.ErrInvalidPath, projectName)
	}
	if err := validateSubdir(subdir); err != nil {
		return "", "", err
	}

	global = filepath.Join(r.baseDir, projectName)
	if subdir != "" {
		global = filepath.Join(global, subdir)
	}
	if !contained(r.baseDir, global) {
		return "", "", fmt.Errorf("%w: resolved path escapes storage base", types.ErrInvalidPath)
	}

	if projectRoot != "" {
		root := filepath.Join(projectRoot, config.InProjectFolder)
		local = root
		if subdir != "" {
			local = filepath.Join(root, subdir)
		}
		if !contained(root, local) {
			return "", "", fmt.Errorf("%w: resolved path escapes project folder", types.ErrInvalidPath)
		}
	}

	return local, global, nil
}

// ensureDir creates a storage directory and drops the marker file on first
// use.
func (r *Router) ensureDir(dir, projectName string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", types.ErrStorageWrite, dir, err)
	}

	marker := filepath.Join(dir, markerFile)
	if _, err := os.Stat(marker); errors.Is(err, os.ErrNotExist) {
		content := fmt.Sprintf("# Context Broker Storage\n# Project: %s\n# Mode: %s\n", projectName, r.mode)
		if err := os.WriteFile(marker, []byte(content), 0o644); err != nil {
			log.Printf("could not write storage marker in %s: %v", dir, err)
		}
	}
	return nil
}

// sanitizeFilename reduces a filename to a safe base name with the .json
// extension enforced.
func sanitizeFilename(filename string) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%w: filename %q", types.ErrInvalidPath, filename)
	}
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	return name, nil
}

// validateSubdir rejects subdirectories that could escape the storage tree.
func validateSubdir(subdir string) error {
	if subdir == "" {
		return nil
	}
	if filepath.IsAbs(subdir) || !filepath.IsLocal(subdir) {
		return fmt.Errorf("%w: subdir %q", types.ErrInvalidPath, subdir)
	}
	return nil
}

// contained reports whether path stays under base after cleaning.
func contained(base, path string) bool {
	base = filepath.Clean(base)
	path = filepath.Clean(path)
	return path == base || strings.HasPrefix(path, base+string(filepath.Separator))
}

// listJSON returns the JSON filenames directly under dir.
func listJSON(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	return names
}

// atomicWrite writes data to path via a temp file and rename.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".save-*")
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorageWrite, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", types.ErrStorageWrite, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", types.ErrStorageWrite, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", types.ErrStorageWrite, err)
	}
	return nil
}
