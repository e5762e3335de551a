package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()

	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("# "+name+"\n"), 0o644))
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, "b.md", "a.md", "notes.txt", "nested/c.md")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.md"), 0o755))

	files, err := Find(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.md"), filepath.Join(dir, "b.md")}, files)

	files, err = Find(dir, "**/*.md")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.md"),
		filepath.Join(dir, "b.md"),
		filepath.Join(dir, "nested", "c.md"),
	}, files)
}

func TestFindErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, "a.md")

	_, err := Find(filepath.Join(dir, "missing"), "")
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Find(filepath.Join(dir, "a.md"), "")
	require.ErrorContains(t, err, "is not a directory")

	_, err = Find(dir, "[")
	require.ErrorContains(t, err, "invalid pattern")
}
