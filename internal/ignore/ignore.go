package ignore

import (
	"bufio"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// builtinExcluded contains directory names that are always excluded from
// indexing regardless of project-level ignore files. These cannot be
// re-included by negation rules; they guard against walking huge dependency
// trees.
var builtinExcluded = map[string]struct{}{
	// Python
	"__pycache__": {}, ".venv": {}, ".uv": {}, ".tox": {}, ".pytest_cache": {},
	".mypy_cache": {}, "htmlcov": {}, ".eggs": {}, "venv": {}, "env": {}, ".env": {},
	// Node.js
	"node_modules": {}, ".next": {}, ".nuxt": {}, "dist": {}, "build": {}, ".output": {},
	// VCS
	".git": {}, ".svn": {}, ".hg": {},
	// Java / Rust / Go
	"target": {}, "bin": {}, "out": {}, ".gradle": {}, "vendor": {},
	// IDE
	".idea": {}, ".vscode": {}, ".vs": {}, ".settings": {},
	// General
	".cache": {}, "coverage": {}, "tmp": {}, "temp": {}, "logs": {},
}

// Source is the raw text of one ignore file, tagged with its name for
// diagnostics.
type Source struct {
	Name string
	Text string
}

// Rule is one compiled ignore pattern.
type Rule struct {
	Pattern  string
	Negate   bool // leading ! re-includes a previously excluded path
	Anchored bool // leading / anchors the pattern to the project root
	DirOnly  bool // trailing / restricts the rule to directories
}

// RuleSet is an ordered, immutable sequence of compiled rules. Rules are
// evaluated in file order and the last matching rule wins.
type RuleSet struct {
	rules []Rule
}

// Compile parses ignore-file contents into a RuleSet. Sources are
// concatenated in the given order, so rules from a later source override
// rules from an earlier one for the same path. Blank lines, comments and
// syntactically invalid glob patterns are dropped.
func Compile(sources []Source) *RuleSet {
	rs := &RuleSet{}
	for _, src := range sources {
		scanner := bufio.NewScanner(strings.NewReader(src.Text))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			rule, ok := parseLine(line)
			if !ok {
				log.Printf("[ignore] dropping invalid pattern %q from %s", line, src.Name)
				continue
			}
			rs.rules = append(rs.rules, rule)
		}
	}
	return rs
}

// FromProject reads the project's ignore files in fixed priority order:
// .gitignore first, then .dockerignore. A missing file contributes nothing.
func FromProject(root string) *RuleSet {
	var sources []Source
	for _, name := range []string{".gitignore", ".dockerignore"} {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			continue
		}
		sources = append(sources, Source{Name: name, Text: string(data)})
	}
	return Compile(sources)
}

func parseLine(line string) (Rule, bool) {
	var rule Rule
	if strings.HasPrefix(line, "!") {
		rule.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		rule.DirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		rule.Anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if line == "" {
		return Rule{}, false
	}
	if !doublestar.ValidatePattern(line) {
		return Rule{}, false
	}
	rule.Pattern = line
	return rule, true
}

// Len returns the number of compiled rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Match reports whether relPath should be excluded from indexing. relPath is
// evaluated relative to the project root; separators are normalized to
// forward slashes. The built-in exclusion set is checked first and cannot be
// negated.
func (rs *RuleSet) Match(relPath string, isDir bool) bool {
	rel := strings.Trim(filepath.ToSlash(relPath), "/")
	if rel == "" || rel == "." {
		return false
	}

	for _, segment := range strings.Split(rel, "/") {
		if _, ok := builtinExcluded[segment]; ok {
			return true
		}
	}

	ignored := false
	for _, rule := range rs.rules {
		if rule.matches(rel, isDir) {
			ignored = !rule.Negate
		}
	}
	return ignored
}

func (r Rule) matches(rel string, isDir bool) bool {
	if r.DirOnly {
		if isDir {
			return matchGlob(r.Pattern, rel, r.Anchored)
		}
		// A file matches a directory rule when it lives beneath a matching
		// directory.
		for _, ancestor := range ancestors(rel) {
			if matchGlob(r.Pattern, ancestor, r.Anchored) {
				return true
			}
		}
		return false
	}
	return matchGlob(r.Pattern, rel, r.Anchored)
}

// ancestors returns every proper parent directory of rel, shallowest first.
func ancestors(rel string) []string {
	var dirs []string
	for i, c := range rel {
		if c == '/' {
			dirs = append(dirs, rel[:i])
		}
	}
	return dirs
}

// matchGlob matches rel against pattern. Non-anchored patterns may match at
// any depth, so they are additionally tried with a **/ prefix.
func matchGlob(pattern, rel string, anchored bool) bool {
	if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
		return true
	}
	if !anchored {
		if ok, err := doublestar.Match("**/"+pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
