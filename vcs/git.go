package vcs

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/habiliai/docstore/errors"
	"github.com/samber/lo"
)

const (
	gitignoreName    = ".gitignore"
	gitignoreContent = ".knowledge/\n"
	initialMessage   = "Initial commit"
)

type GitRepository struct {
	root   string
	author Author
	logger *slog.Logger
	now    func() time.Time

	// mu guards the writer handle. Readers open their own handle and only
	// look at objects reachable from head.
	mu     sync.Mutex
	repo   *git.Repository
	head   atomic.Pointer[plumbing.Hash]
	broken atomic.Bool
}

var _ Repository = (*GitRepository)(nil)

type GitOption func(*GitRepository)

func WithLogger(logger *slog.Logger) GitOption {
	return func(r *GitRepository) {
		r.logger = logger
	}
}

func WithClock(now func() time.Time) GitOption {
	return func(r *GitRepository) {
		r.now = now
	}
}

// OpenGit opens the repository at root, initializing it with a .gitignore
// and an initial commit of the existing tree when there is none.
func OpenGit(ctx context.Context, root string, author Author, opts ...GitOption) (*GitRepository, error) {
	if author.Name == "" || author.Email == "" {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "commit author name and email are required for %s", root)
	}

	r := &GitRepository{
		root:   root,
		author: author,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	repo, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		r.logger.Info("initializing repository", "root", root)
		repo, err = git.PlainInit(root, false)
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrRepositoryState, "failed to open repository %s: %v", root, err)
	}
	r.repo = repo

	ref, err := repo.Head()
	switch {
	case err == nil:
		hash := ref.Hash()
		r.head.Store(&hash)
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		if err := r.initialCommit(ctx); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Wrapf(errors.ErrRepositoryState, "failed to read head of %s: %v", root, err)
	}

	return r, nil
}

func (r *GitRepository) initialCommit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ignorePath := filepath.Join(r.root, gitignoreName)
	if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(ignorePath, []byte(gitignoreContent), 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", ignorePath)
		}
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return errors.Wrapf(errors.ErrRepositoryState, "worktree of %s: %v", r.root, err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return errors.Wrapf(errors.ErrRepositoryState, "failed to stage existing files in %s: %v", r.root, err)
	}
	hash, err := wt.Commit(initialMessage, &git.CommitOptions{
		Author:            r.signature(nil),
		AllowEmptyCommits: true,
	})
	if err != nil {
		return errors.Wrapf(errors.ErrRepositoryState, "failed to create initial commit in %s: %v", r.root, err)
	}
	r.head.Store(&hash)
	return nil
}

func (r *GitRepository) Root() string {
	return r.root
}

func (r *GitRepository) Head() string {
	if h := r.head.Load(); h != nil {
		return h.String()
	}
	return ""
}

func (r *GitRepository) signature(author *Author) *object.Signature {
	a := r.author
	if author != nil && !author.IsZero() {
		a = *author
	}
	return &object.Signature{
		Name:  a.Name,
		Email: a.Email,
		When:  r.now(),
	}
}

func (r *GitRepository) usable() error {
	if r.broken.Load() {
		return errors.Wrapf(errors.ErrRepositoryState, "repository %s needs manual repair", r.root)
	}
	return nil
}

func (r *GitRepository) Commit(ctx context.Context, paths []string, message string, author *Author) (*CommitRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.usable(); err != nil {
		return nil, err
	}
	return r.commitOrRollback(ctx, normalizePaths(paths), message, r.signature(author))
}

func (r *GitRepository) commitOrRollback(ctx context.Context, paths []string, message string, sig *object.Signature) (*CommitRecord, error) {
	hash, err := r.commit(ctx, paths, sig, message)
	if err != nil {
		if !errors.Is(err, errors.ErrNothingToCommit) {
			r.rollback(paths, err)
		}
		return nil, err
	}

	r.head.Store(&hash)
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrRepositoryState, "failed to read commit %s: %v", hash, err)
	}
	record, err := newCommitRecord(commit)
	if err != nil {
		return nil, err
	}

	r.logger.Info("committed", "root", r.root, "revision", record.Revision, "changes", len(record.Changes))
	return record, nil
}

func (r *GitRepository) commit(ctx context.Context, paths []string, sig *object.Signature, message string) (plumbing.Hash, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.ZeroHash, err
	}
	if len(paths) == 0 {
		return plumbing.ZeroHash, errors.Wrapf(errors.ErrNothingToCommit, "no paths given")
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, errors.Wrapf(errors.ErrRepositoryState, "worktree of %s: %v", r.root, err)
	}

	for _, p := range paths {
		if err := r.stage(wt, p); err != nil {
			return plumbing.ZeroHash, err
		}
	}

	status, err := wt.Status()
	if err != nil {
		return plumbing.ZeroHash, errors.Wrapf(errors.ErrRepositoryState, "status of %s: %v", r.root, err)
	}
	changed := lo.ContainsBy(paths, func(p string) bool {
		fs, ok := status[p]
		return ok && fs.Staging != git.Unmodified && fs.Staging != git.Untracked
	})
	if !changed {
		return plumbing.ZeroHash, errors.Wrapf(errors.ErrNothingToCommit, "%s", strings.Join(paths, ", "))
	}

	if err := ctx.Err(); err != nil {
		return plumbing.ZeroHash, err
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: true,
	})
	if err != nil {
		return plumbing.ZeroHash, errors.Wrapf(errors.ErrRepositoryState, "commit in %s: %v", r.root, err)
	}
	return hash, nil
}

func (r *GitRepository) stage(wt *git.Worktree, p string) error {
	_, statErr := os.Lstat(filepath.Join(r.root, filepath.FromSlash(p)))
	switch {
	case statErr == nil:
		if _, err := wt.Add(p); err != nil {
			return errors.Wrapf(errors.ErrRepositoryState, "failed to stage %s: %v", p, err)
		}
	case os.IsNotExist(statErr):
		if _, err := wt.Remove(p); err != nil && !errors.Is(err, index.ErrEntryNotFound) {
			return errors.Wrapf(errors.ErrRepositoryState, "failed to stage removal of %s: %v", p, err)
		}
	default:
		return errors.Wrapf(statErr, "failed to stat %s", p)
	}
	return nil
}

// rollback puts paths back to their head content and resets the index. A
// repository whose rollback fails is marked broken.
func (r *GitRepository) rollback(paths []string, cause error) {
	head := r.head.Load()
	if head == nil {
		r.broken.Store(true)
		return
	}

	fail := func(err error) {
		r.broken.Store(true)
		r.logger.Error("rollback failed, repository needs manual repair", "root", r.root, "cause", cause, "err", err)
	}

	commit, err := r.repo.CommitObject(*head)
	if err != nil {
		fail(err)
		return
	}
	tree, err := commit.Tree()
	if err != nil {
		fail(err)
		return
	}

	for _, p := range paths {
		abs := filepath.Join(r.root, filepath.FromSlash(p))
		file, err := tree.File(p)
		switch {
		case errors.Is(err, object.ErrFileNotFound):
			if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
				fail(err)
				return
			}
		case err != nil:
			fail(err)
			return
		default:
			content, err := file.Contents()
			if err != nil {
				fail(err)
				return
			}
			if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
				fail(err)
				return
			}
			if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
				fail(err)
				return
			}
		}
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		fail(err)
		return
	}
	if err := wt.Reset(&git.ResetOptions{Commit: *head, Mode: git.MixedReset}); err != nil {
		fail(err)
		return
	}

	r.logger.Warn("rolled back uncommitted change", "root", r.root, "paths", paths, "cause", cause)
}

func (r *GitRepository) Revert(ctx context.Context, revision string, message string, author *Author) (*CommitRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.usable(); err != nil {
		return nil, err
	}

	target, err := r.treeAt(r.repo, revision)
	if err != nil {
		return nil, err
	}
	current, err := r.treeAt(r.repo, "")
	if err != nil {
		return nil, err
	}

	changes, err := treeChanges(current, target)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, errors.Wrapf(errors.ErrNothingToCommit, "head already matches %s", revision)
	}

	paths := lo.Map(changes, func(ch Change, _ int) string {
		return ch.Path
	})
	if err := r.checkout(target, changes); err != nil {
		r.rollback(paths, err)
		return nil, err
	}
	return r.commitOrRollback(ctx, paths, message, r.signature(author))
}

func (r *GitRepository) checkout(tree *object.Tree, changes []Change) error {
	for _, ch := range changes {
		abs := filepath.Join(r.root, filepath.FromSlash(ch.Path))
		if ch.Kind == ChangeDeleted {
			if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
				return errors.Wrapf(err, "failed to remove %s", ch.Path)
			}
			continue
		}

		file, err := tree.File(ch.Path)
		if err != nil {
			return errors.Wrapf(errors.ErrRepositoryState, "failed to read %s: %v", ch.Path, err)
		}
		content, err := file.Contents()
		if err != nil {
			return errors.Wrapf(errors.ErrRepositoryState, "failed to read %s: %v", ch.Path, err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory for %s", ch.Path)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", ch.Path)
		}
	}
	return nil
}

func (r *GitRepository) History(ctx context.Context, p string, limit int) ([]CommitRecord, error) {
	repo, err := r.reader()
	if err != nil {
		return nil, err
	}
	head := r.head.Load()
	if head == nil {
		return nil, nil
	}
	p = normalizePath(p)

	var records []CommitRecord
	hash := *head
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		commit, err := repo.CommitObject(hash)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrRepositoryState, "failed to read commit %s: %v", hash, err)
		}
		record, err := newCommitRecord(commit)
		if err != nil {
			return nil, err
		}
		if p == "" || touches(record.Changes, p) {
			records = append(records, *record)
			if limit > 0 && len(records) >= limit {
				break
			}
		}

		if commit.NumParents() == 0 {
			break
		}
		hash = commit.ParentHashes[0]
	}
	return records, nil
}

func (r *GitRepository) Diff(ctx context.Context, from, to string) ([]Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo, err := r.reader()
	if err != nil {
		return nil, err
	}
	fromTree, err := r.treeAt(repo, from)
	if err != nil {
		return nil, err
	}
	toTree, err := r.treeAt(repo, to)
	if err != nil {
		return nil, err
	}
	return treeChanges(fromTree, toTree)
}

func (r *GitRepository) ResolveRevision(ctx context.Context, revision string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if revision == "" {
		return r.Head(), nil
	}
	repo, err := r.reader()
	if err != nil {
		return "", err
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return "", errors.Wrapf(errors.ErrNotFound, "revision %s: %v", revision, err)
	}
	if _, err := repo.CommitObject(*resolved); err != nil {
		return "", errors.Wrapf(errors.ErrNotFound, "revision %s: %v", revision, err)
	}
	return resolved.String(), nil
}

func (r *GitRepository) ReadFile(ctx context.Context, revision, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo, err := r.reader()
	if err != nil {
		return nil, err
	}
	tree, err := r.treeAt(repo, revision)
	if err != nil {
		return nil, err
	}

	p = normalizePath(p)
	file, err := tree.File(p)
	if errors.Is(err, object.ErrFileNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
		return nil, errors.Wrapf(errors.ErrNotFound, "%s", p)
	} else if err != nil {
		return nil, errors.Wrapf(errors.ErrRepositoryState, "failed to read %s: %v", p, err)
	}

	content, err := file.Contents()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrRepositoryState, "failed to read %s: %v", p, err)
	}
	return []byte(content), nil
}

func (r *GitRepository) ListFiles(ctx context.Context, revision, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo, err := r.reader()
	if err != nil {
		return nil, err
	}
	tree, err := r.treeAt(repo, revision)
	if err != nil {
		return nil, err
	}

	prefix = normalizePath(prefix)
	var files []string
	if err := tree.Files().ForEach(func(f *object.File) error {
		if prefix == "" || f.Name == prefix || strings.HasPrefix(f.Name, prefix+"/") {
			files = append(files, f.Name)
		}
		return nil
	}); err != nil {
		return nil, errors.Wrapf(errors.ErrRepositoryState, "failed to list files: %v", err)
	}
	sort.Strings(files)
	return files, nil
}

func (r *GitRepository) reader() (*git.Repository, error) {
	repo, err := git.PlainOpen(r.root)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrRepositoryState, "failed to open repository %s: %v", r.root, err)
	}
	return repo, nil
}

func (r *GitRepository) treeAt(repo *git.Repository, revision string) (*object.Tree, error) {
	var hash plumbing.Hash
	if revision == "" {
		head := r.head.Load()
		if head == nil {
			return &object.Tree{}, nil
		}
		hash = *head
	} else {
		resolved, err := repo.ResolveRevision(plumbing.Revision(revision))
		if err != nil {
			return nil, errors.Wrapf(errors.ErrNotFound, "revision %s: %v", revision, err)
		}
		hash = *resolved
	}

	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "revision %s: %v", revision, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrRepositoryState, "tree of %s: %v", hash, err)
	}
	return tree, nil
}

func newCommitRecord(commit *object.Commit) (*CommitRecord, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrRepositoryState, "tree of %s: %v", commit.Hash, err)
	}
	parentTree := &object.Tree{}
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrRepositoryState, "parent of %s: %v", commit.Hash, err)
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, errors.Wrapf(errors.ErrRepositoryState, "tree of %s: %v", parent.Hash, err)
		}
	}

	changes, err := treeChanges(parentTree, tree)
	if err != nil {
		return nil, err
	}

	return &CommitRecord{
		Revision: commit.Hash.String(),
		Author: Author{
			Name:  commit.Author.Name,
			Email: commit.Author.Email,
		},
		Time:    commit.Author.When,
		Message: strings.TrimSpace(commit.Message),
		Parents: lo.Map(commit.ParentHashes, func(h plumbing.Hash, _ int) string {
			return h.String()
		}),
		Changes: changes,
	}, nil
}

func treeChanges(from, to *object.Tree) ([]Change, error) {
	diff, err := object.DiffTree(from, to)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrRepositoryState, "diff: %v", err)
	}

	changes := make([]Change, 0, len(diff))
	for _, ch := range diff {
		action, err := ch.Action()
		if err != nil {
			return nil, errors.Wrapf(errors.ErrRepositoryState, "diff: %v", err)
		}
		switch action {
		case merkletrie.Insert:
			changes = append(changes, Change{Path: ch.To.Name, Kind: ChangeAdded})
		case merkletrie.Delete:
			changes = append(changes, Change{Path: ch.From.Name, Kind: ChangeDeleted})
		case merkletrie.Modify:
			changes = append(changes, Change{Path: ch.To.Name, Kind: ChangeModified})
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
	return changes, nil
}

func touches(changes []Change, p string) bool {
	return lo.ContainsBy(changes, func(ch Change) bool {
		return ch.Path == p || strings.HasPrefix(ch.Path, p+"/")
	})
}

func normalizePath(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	if p == "." || p == "/" {
		return ""
	}
	return strings.TrimPrefix(p, "/")
}

func normalizePaths(paths []string) []string {
	return lo.Uniq(lo.Compact(lo.Map(paths, func(p string, _ int) string {
		return normalizePath(p)
	})))
}
