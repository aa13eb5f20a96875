package sandbox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func realDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestResolveInsideRoot(t *testing.T) {
	root := realDir(t)
	sb, err := sandbox.New(root)
	require.NoError(t, err)

	for _, path := range []string{
		"notes/a.md",
		"./notes/../b.md",
		filepath.Join(root, "c.md"),
		filepath.Join(root, "deep", "missing", "d.md"),
	} {
		t.Run(path, func(t *testing.T) {
			resolved, err := sb.Resolve(path)
			require.NoError(t, err)
			assert.Equal(t, root, resolved.Root)
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(resolved.Rel)), resolved.Abs)
		})
	}

	resolved, err := sb.Resolve("")
	require.NoError(t, err)
	assert.True(t, resolved.IsRoot())
}

func TestResolveOutsideRoot(t *testing.T) {
	root := realDir(t)
	outside := realDir(t)
	sb, err := sandbox.New(root)
	require.NoError(t, err)

	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))

	for _, path := range []string{
		"../x.md",
		"notes/../../x.md",
		filepath.Join(outside, "x.md"),
		"/etc/passwd",
		"escape/x.md",
		"escape/new/dir/x.md",
		root + "-sibling/x.md",
	} {
		t.Run(path, func(t *testing.T) {
			_, err := sb.Resolve(path)
			assert.ErrorIs(t, err, errors.ErrOutOfBounds)
		})
	}
}

func TestResolveSymlinkIntoRoot(t *testing.T) {
	root := realDir(t)
	elsewhere := realDir(t)
	sb, err := sandbox.New(root)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "notes"), 0o755))
	link := filepath.Join(elsewhere, "link")
	require.NoError(t, os.Symlink(filepath.Join(root, "notes"), link))

	resolved, err := sb.Resolve(filepath.Join(link, "a.md"))
	require.NoError(t, err)
	assert.Equal(t, root, resolved.Root)
	assert.Equal(t, "notes/a.md", resolved.Rel)
}

func TestResolveReservedDirectories(t *testing.T) {
	root := realDir(t)
	sb, err := sandbox.New(root)
	require.NoError(t, err)

	for _, path := range []string{".git/config", ".knowledge/graph.json", "sub/.git"} {
		_, err := sb.Resolve(path)
		assert.ErrorIs(t, err, errors.ErrOutOfBounds, path)
	}

	_, err = sb.Resolve(".gitignore")
	assert.NoError(t, err)
}

func TestNestedRootsPreferLongest(t *testing.T) {
	outer := realDir(t)
	inner := filepath.Join(outer, "inner")
	sb, err := sandbox.New(outer, inner)
	require.NoError(t, err)

	resolved, err := sb.Resolve(filepath.Join(inner, "a.md"))
	require.NoError(t, err)
	assert.Equal(t, inner, resolved.Root)
	assert.Equal(t, "a.md", resolved.Rel)

	root, err := sb.RootFor(inner)
	require.NoError(t, err)
	assert.Equal(t, inner, root)

	root, err = sb.RootFor("")
	require.NoError(t, err)
	assert.Equal(t, outer, root)
}

func TestNewRequiresRoots(t *testing.T) {
	_, err := sandbox.New()
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}
