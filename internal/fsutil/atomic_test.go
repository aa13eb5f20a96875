package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/habiliai/docstore/internal/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "graph.json")

	require.NoError(t, fsutil.WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, fsutil.WriteFileAtomic(path, []byte("two"), 0o644))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(content))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteFileAtomicOntoDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "taken"), 0o755))

	err := fsutil.WriteFileAtomic(filepath.Join(dir, "taken"), []byte("x"), 0o644)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
