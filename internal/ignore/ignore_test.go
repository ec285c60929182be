package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileText(text string) *RuleSet {
	return Compile([]Source{{Name: ".gitignore", Text: text}})
}

func TestCompileSkipsBlanksAndComments(t *testing.T) {
	rs := compileText("# comment\n\n*.log\n   \n# another\nbuild/\n")
	assert.Equal(t, 2, rs.Len())
}

func TestBasicPatterns(t *testing.T) {
	rs := compileText("*.log\nsecret.txt\n")

	assert.True(t, rs.Match("debug.log", false))
	assert.True(t, rs.Match("sub/dir/trace.log", false))
	assert.True(t, rs.Match("secret.txt", false))
	assert.True(t, rs.Match("nested/secret.txt", false))
	assert.False(t, rs.Match("main.go", false))
}

func TestNegationLastMatchWins(t *testing.T) {
	rs := compileText("*.log\n!important.log\n")

	assert.True(t, rs.Match("debug.log", false))
	assert.False(t, rs.Match("important.log", false))
	assert.False(t, rs.Match("sub/important.log", false))
}

func TestNegationOrderMatters(t *testing.T) {
	// The re-excluding rule comes after the negation, so it wins.
	rs := compileText("!important.log\n*.log\n")
	assert.True(t, rs.Match("important.log", false))
}

func TestAnchoredPattern(t *testing.T) {
	rs := compileText("/config.json\n")

	assert.True(t, rs.Match("config.json", false))
	assert.False(t, rs.Match("sub/config.json", false))
}

func TestDirectoryOnlyPattern(t *testing.T) {
	rs := compileText("generated/\n")

	assert.True(t, rs.Match("generated", true))
	assert.True(t, rs.Match("generated/code.go", false))
	assert.True(t, rs.Match("pkg/generated", true))
	assert.True(t, rs.Match("pkg/generated/code.go", false))
	// A plain file named like the directory is not matched.
	assert.False(t, rs.Match("generated", false))
}

func TestDoubleStarPatterns(t *testing.T) {
	rs := compileText("docs/**/draft.md\n**/*.tmp\n")

	assert.True(t, rs.Match("docs/a/b/draft.md", false))
	assert.True(t, rs.Match("docs/draft.md", false))
	assert.False(t, rs.Match("other/draft.md", false))
	assert.True(t, rs.Match("x.tmp", false))
	assert.True(t, rs.Match("deep/nested/x.tmp", false))
}

func TestCharacterClasses(t *testing.T) {
	rs := compileText("file[0-9].txt\n")

	assert.True(t, rs.Match("file1.txt", false))
	assert.False(t, rs.Match("fileA.txt", false))
}

func TestBuiltinExclusionsAlwaysApply(t *testing.T) {
	rs := Compile(nil)

	assert.True(t, rs.Match("node_modules", true))
	assert.True(t, rs.Match("node_modules/pkg/index.js", false))
	assert.True(t, rs.Match("a/b/.git/config", false))
	assert.True(t, rs.Match("__pycache__/mod.pyc", false))
	assert.True(t, rs.Match(".venv/lib/site.py", false))
}

func TestBuiltinExclusionsCannotBeNegated(t *testing.T) {
	rs := compileText("!node_modules\n!node_modules/**\n")

	assert.True(t, rs.Match("node_modules", true))
	assert.True(t, rs.Match("node_modules/pkg/index.js", false))
}

func TestLaterSourceOverridesEarlier(t *testing.T) {
	rs := Compile([]Source{
		{Name: ".gitignore", Text: "*.md\n"},
		{Name: ".dockerignore", Text: "!README.md\n"},
	})

	assert.True(t, rs.Match("notes.md", false))
	assert.False(t, rs.Match("README.md", false))
}

func TestInvalidPatternDropped(t *testing.T) {
	rs := compileText("[\n*.log\n")
	assert.Equal(t, 1, rs.Len())
	assert.True(t, rs.Match("a.log", false))
}

func TestWindowsSeparatorsNormalized(t *testing.T) {
	rs := compileText("*.log\n")
	assert.True(t, rs.Match(filepath.Join("sub", "x.log"), false))
}

func TestFromProject(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".dockerignore"), []byte("*.bak\n"), 0644))

	rs := FromProject(root)
	assert.Equal(t, 2, rs.Len())
	assert.True(t, rs.Match("x.log", false))
	assert.True(t, rs.Match("x.bak", false))
}

func TestFromProjectMissingFiles(t *testing.T) {
	rs := FromProject(t.TempDir())
	assert.Equal(t, 0, rs.Len())
	assert.False(t, rs.Match("main.go", false))
}
