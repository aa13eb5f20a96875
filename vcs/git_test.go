package vcs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/internal/mylog"
	"github.com/habiliai/docstore/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var author = vcs.Author{Name: "Tester", Email: "tester@example.com"}

func openRepo(t *testing.T) (*vcs.GitRepository, string) {
	t.Helper()
	root := t.TempDir()
	repo, err := vcs.OpenGit(t.Context(), root, author, vcs.WithLogger(mylog.Discard()))
	require.NoError(t, err)
	return repo, root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestOpenGitInitializes(t *testing.T) {
	repo, root := openRepo(t)

	require.NotEmpty(t, repo.Head())
	assert.FileExists(t, filepath.Join(root, ".gitignore"))

	history, err := repo.History(t.Context(), "", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Initial commit", history[0].Message)
	assert.Equal(t, author, history[0].Author)
	assert.Empty(t, history[0].Parents)

	reopened, err := vcs.OpenGit(t.Context(), root, author, vcs.WithLogger(mylog.Discard()))
	require.NoError(t, err)
	assert.Equal(t, repo.Head(), reopened.Head())
}

func TestOpenGitRequiresAuthor(t *testing.T) {
	_, err := vcs.OpenGit(t.Context(), t.TempDir(), vcs.Author{Name: "nobody"})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestCommitLifecycle(t *testing.T) {
	ctx := t.Context()
	repo, root := openRepo(t)
	initial := repo.Head()

	writeFile(t, root, "notes/a.md", "one")
	created, err := repo.Commit(ctx, []string{"notes/a.md"}, "create a", nil)
	require.NoError(t, err)
	assert.Equal(t, []vcs.Change{{Path: "notes/a.md", Kind: vcs.ChangeAdded}}, created.Changes)
	assert.Equal(t, []string{initial}, created.Parents)
	assert.Equal(t, created.Revision, repo.Head())

	_, err = repo.Commit(ctx, []string{"notes/a.md"}, "again", nil)
	assert.ErrorIs(t, err, errors.ErrNothingToCommit)
	assert.Equal(t, created.Revision, repo.Head())

	writeFile(t, root, "notes/a.md", "two")
	other := &vcs.Author{Name: "Other", Email: "other@example.com"}
	modified, err := repo.Commit(ctx, []string{"notes/a.md"}, "modify a", other)
	require.NoError(t, err)
	assert.Equal(t, vcs.ChangeModified, modified.Changes[0].Kind)
	assert.Equal(t, *other, modified.Author)

	require.NoError(t, os.Remove(filepath.Join(root, "notes", "a.md")))
	deleted, err := repo.Commit(ctx, []string{"notes/a.md"}, "delete a", nil)
	require.NoError(t, err)
	assert.Equal(t, []vcs.Change{{Path: "notes/a.md", Kind: vcs.ChangeDeleted}}, deleted.Changes)

	history, err := repo.History(ctx, "notes/a.md", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, deleted.Revision, history[0].Revision)
	assert.Equal(t, created.Revision, history[2].Revision)

	limited, err := repo.History(ctx, "notes", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, deleted.Revision, limited[0].Revision)

	content, err := repo.ReadFile(ctx, created.Revision, "notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, "one", string(content))

	_, err = repo.ReadFile(ctx, "", "notes/a.md")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	changes, err := repo.Diff(ctx, initial, modified.Revision)
	require.NoError(t, err)
	assert.Equal(t, []vcs.Change{{Path: "notes/a.md", Kind: vcs.ChangeAdded}}, changes)

	_, err = repo.ReadFile(ctx, "no-such-revision", "notes/a.md")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestResolveRevision(t *testing.T) {
	ctx := t.Context()
	repo, root := openRepo(t)
	initial := repo.Head()

	writeFile(t, root, "a.md", "one")
	created, err := repo.Commit(ctx, []string{"a.md"}, "create a", nil)
	require.NoError(t, err)

	for revision, want := range map[string]string{
		"":               created.Revision,
		"HEAD":           created.Revision,
		created.Revision: created.Revision,
		"HEAD~1":         initial,
	} {
		got, err := repo.ResolveRevision(ctx, revision)
		require.NoError(t, err, revision)
		assert.Equal(t, want, got, revision)
	}

	_, err = repo.ResolveRevision(ctx, "no-such-revision")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCommitRollsBackOnCancel(t *testing.T) {
	repo, root := openRepo(t)

	writeFile(t, root, "a.md", "kept")
	_, err := repo.Commit(t.Context(), []string{"a.md"}, "create a", nil)
	require.NoError(t, err)
	head := repo.Head()

	writeFile(t, root, "a.md", "abandoned")
	writeFile(t, root, "b.md", "abandoned")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = repo.Commit(ctx, []string{"a.md", "b.md"}, "abandoned", nil)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, head, repo.Head())
	content, err := os.ReadFile(filepath.Join(root, "a.md"))
	require.NoError(t, err)
	assert.Equal(t, "kept", string(content))
	assert.NoFileExists(t, filepath.Join(root, "b.md"))

	writeFile(t, root, "c.md", "next")
	next, err := repo.Commit(t.Context(), []string{"c.md"}, "create c", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{head}, next.Parents)
	assert.Equal(t, []string{"c.md"}, next.Paths())
}

func TestRevertAddsForwardCommit(t *testing.T) {
	ctx := t.Context()
	repo, root := openRepo(t)

	writeFile(t, root, "a.md", "v0")
	rev0, err := repo.Commit(ctx, []string{"a.md"}, "v0", nil)
	require.NoError(t, err)

	writeFile(t, root, "a.md", "v1")
	writeFile(t, root, "b.md", "new")
	_, err = repo.Commit(ctx, []string{"a.md", "b.md"}, "v1", nil)
	require.NoError(t, err)

	reverted, err := repo.Revert(ctx, rev0.Revision, "revert", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []vcs.Change{
		{Path: "a.md", Kind: vcs.ChangeModified},
		{Path: "b.md", Kind: vcs.ChangeDeleted},
	}, reverted.Changes)

	changes, err := repo.Diff(ctx, rev0.Revision, reverted.Revision)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.NoFileExists(t, filepath.Join(root, "b.md"))

	history, err := repo.History(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, history, 4)

	_, err = repo.Revert(ctx, rev0.Revision, "again", nil)
	assert.ErrorIs(t, err, errors.ErrNothingToCommit)
}

func TestRegistry(t *testing.T) {
	rootA, rootB := t.TempDir(), t.TempDir()
	registry, err := vcs.OpenRegistry(t.Context(), []string{rootA, rootB}, author, vcs.WithLogger(mylog.Discard()))
	require.NoError(t, err)

	assert.Equal(t, []string{rootA, rootB}, registry.Roots())
	repo, err := registry.Get(rootB)
	require.NoError(t, err)
	assert.Equal(t, rootB, repo.Root())

	_, err = registry.Get(filepath.Join(rootA, "nested"))
	assert.ErrorIs(t, err, errors.ErrNotFound)

	files, err := repo.ListFiles(t.Context(), "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{".gitignore"}, files)
}
