package modrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
	}
}

func baseNames(files []CandidateFile) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name())
	}
	return names
}

func TestLocateDefaultPattern(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.jar", "b.bar", "c.zip", "notes.txt", "sub/d.jar")

	files, err := Locate(Root{Dir: dir})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.jar", "b.bar"}, baseNames(files))
	for _, f := range files {
		assert.True(t, filepath.IsAbs(f.Path))
		assert.False(t, f.ModTime.IsZero())
	}
}

func TestLocateRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.jar", "sub/b.jar", "sub/deeper/c.bar")

	files, err := Locate(Root{Dir: dir, Recursive: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.jar", "b.jar", "c.bar"}, baseNames(files))
}

func TestLocatePatternMatchesFullPath(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "core/a.jar", "extra/b.jar")

	files, err := Locate(Root{Dir: dir, Recursive: true, Pattern: `.*/core/.*\.jar`})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jar"}, baseNames(files))

	// A pattern for the base name alone does not match the absolute path.
	files, err = Locate(Root{Dir: dir, Recursive: true, Pattern: `a\.jar`})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLocateMissingOrNonDirectoryRoot(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.jar")

	files, err := Locate(Root{Dir: filepath.Join(dir, "missing")})
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = Locate(Root{Dir: filepath.Join(dir, "a.jar")})
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = Locate(Root{})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLocateInvalidPattern(t *testing.T) {
	_, err := Locate(Root{Dir: t.TempDir(), Pattern: "(["})
	var patternErr PatternError
	require.ErrorAs(t, err, &patternErr)
	assert.Equal(t, "([", patternErr.Pattern)
}

func TestLocateAllKeepsRootOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeFiles(t, first, "a.jar")
	writeFiles(t, second, "b.jar", "sub/c.jar")

	files, err := LocateAll(context.Background(), []Root{
		{Dir: first},
		{Dir: second, Recursive: true},
	})
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.jar", files[0].Name())
	assert.ElementsMatch(t, []string{"b.jar", "c.jar"}, baseNames(files[1:]))
}

func TestDedupeLaterWinsInFirstPosition(t *testing.T) {
	files := []CandidateFile{
		{Path: "/a/x.jar"},
		{Path: "/a/y.jar"},
		{Path: "/b/x.jar"},
		{Path: "/b/z.jar"},
	}
	assert.Equal(t, []CandidateFile{
		{Path: "/b/x.jar"},
		{Path: "/a/y.jar"},
		{Path: "/b/z.jar"},
	}, Dedupe(files))
	assert.Empty(t, Dedupe(nil))
}

func TestLocateAndDedupeAcrossRoots(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	writeFiles(t, a, "x.jar", "y.jar")
	writeFiles(t, b, "x.jar")

	files, err := LocateAll(context.Background(), []Root{{Dir: a}, {Dir: b, Recursive: true}})
	require.NoError(t, err)
	files = Dedupe(files)

	require.Len(t, files, 2)
	byName := make(map[string]string, len(files))
	for _, f := range files {
		byName[f.Name()] = f.Path
	}
	assert.Equal(t, filepath.Join(b, "x.jar"), byName["x.jar"])
	assert.Equal(t, filepath.Join(a, "y.jar"), byName["y.jar"])
}
