package document

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/habiliai/docstore/config"
	"github.com/habiliai/docstore/coordinator"
	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/internal/fsutil"
	"github.com/habiliai/docstore/sandbox"
	"github.com/habiliai/docstore/vcs"
	"github.com/pmezard/go-difflib/difflib"
)

const (
	snippetRadius = 80
	ignoreFile    = ".gitignore"
)

type service struct {
	sandbox  *sandbox.Sandbox
	coord    *coordinator.Coordinator
	repos    *vcs.Registry
	conf     *config.StoreConfig
	messages *messages
	logger   *slog.Logger
}

var _ Service = (*service)(nil)

func NewService(
	sb *sandbox.Sandbox,
	coord *coordinator.Coordinator,
	repos *vcs.Registry,
	conf *config.StoreConfig,
	logger *slog.Logger,
) (Service, error) {
	msgs, err := newMessages(conf.Messages)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		sandbox:  sb,
		coord:    coord,
		repos:    repos,
		conf:     conf,
		messages: msgs,
		logger:   logger,
	}, nil
}

func (s *service) resolve(path string, allowRoot bool) (sandbox.Resolved, vcs.Repository, error) {
	target, err := s.sandbox.Resolve(path)
	if err != nil {
		return sandbox.Resolved{}, nil, err
	}
	if target.IsRoot() && !allowRoot {
		return sandbox.Resolved{}, nil, errors.Wrapf(errors.ErrInvalidParams, "%q names a storage root, not a document", path)
	}
	repo, err := s.repos.Get(target.Root)
	if err != nil {
		return sandbox.Resolved{}, nil, err
	}
	return target, repo, nil
}

func repoPath(target sandbox.Resolved) string {
	if target.IsRoot() {
		return ""
	}
	return target.Rel
}

func (s *service) Write(ctx context.Context, path string, content []byte, opts ...WriteOption) (*Document, error) {
	target, repo, err := s.resolve(path, false)
	if err != nil {
		return nil, err
	}
	o := newWriteOptions(opts)

	ctx, release, err := s.coord.Acquire(ctx, target.Root)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.read(ctx, repo, target, "")
	switch {
	case err == nil && current.Hash == Hash(content):
		s.logger.Debug("document unchanged", "path", target.Rel, "root", target.Root)
		return current, nil
	case err != nil && !errors.Is(err, errors.ErrNotFound):
		return nil, err
	}

	message, err := render(s.messages.write, messageData{Path: target.Rel, Created: current == nil}, o.message)
	if err != nil {
		return nil, err
	}

	commitCtx, cancel := context.WithTimeout(ctx, s.conf.CommitTimeout)
	defer cancel()

	if err := fsutil.WriteFileAtomic(target.Abs, content, 0o644); err != nil {
		return nil, err
	}
	record, err := repo.Commit(commitCtx, []string{target.Rel}, message, o.author)
	if errors.Is(err, errors.ErrNothingToCommit) {
		return s.read(ctx, repo, target, "")
	} else if err != nil {
		return nil, err
	}

	s.logger.Info("document written", "path", target.Rel, "root", target.Root, "revision", record.Revision)

	meta, _ := ParseFrontmatter(content)
	return &Document{
		Path:       target.Rel,
		Root:       target.Root,
		Content:    content,
		Hash:       Hash(content),
		ModifiedAt: record.Time,
		Revision:   record.Revision,
		Meta:       meta,
	}, nil
}

func (s *service) Read(ctx context.Context, path string) (*Document, error) {
	target, repo, err := s.resolve(path, false)
	if err != nil {
		return nil, err
	}
	return s.read(ctx, repo, target, "")
}

func (s *service) ReadAt(ctx context.Context, path string, revision string) (*Document, error) {
	if revision == "" {
		return s.Read(ctx, path)
	}
	target, repo, err := s.resolve(path, false)
	if err != nil {
		return nil, err
	}
	return s.read(ctx, repo, target, revision)
}

// read builds a document from committed state only, so callers never see a
// write that has not been committed yet.
func (s *service) read(ctx context.Context, repo vcs.Repository, target sandbox.Resolved, revision string) (*Document, error) {
	content, err := repo.ReadFile(ctx, revision, target.Rel)
	if err != nil {
		return nil, errors.Wrapf(err, "document %s", target.Rel)
	}

	meta, _ := ParseFrontmatter(content)
	doc := &Document{
		Path:     target.Rel,
		Root:     target.Root,
		Content:  content,
		Hash:     Hash(content),
		Revision: revision,
		Meta:     meta,
	}

	if revision == "" {
		history, err := repo.History(ctx, target.Rel, 1)
		if err != nil {
			return nil, err
		}
		if len(history) > 0 {
			doc.Revision = history[0].Revision
			doc.ModifiedAt = history[0].Time
		}
	}
	return doc, nil
}

func (s *service) Exists(ctx context.Context, path string) (bool, error) {
	target, repo, err := s.resolve(path, false)
	if err != nil {
		return false, err
	}
	_, err = repo.ReadFile(ctx, "", target.Rel)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errors.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *service) Delete(ctx context.Context, path string, opts ...WriteOption) (*vcs.CommitRecord, error) {
	target, repo, err := s.resolve(path, false)
	if err != nil {
		return nil, err
	}
	o := newWriteOptions(opts)

	ctx, release, err := s.coord.Acquire(ctx, target.Root)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := repo.ReadFile(ctx, "", target.Rel); err != nil {
		return nil, errors.Wrapf(err, "document %s", target.Rel)
	}

	message, err := render(s.messages.delete, messageData{Path: target.Rel}, o.message)
	if err != nil {
		return nil, err
	}

	commitCtx, cancel := context.WithTimeout(ctx, s.conf.CommitTimeout)
	defer cancel()

	if err := os.Remove(target.Abs); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to remove %s", target.Rel)
	}
	record, err := repo.Commit(commitCtx, []string{target.Rel}, message, o.author)
	if err != nil {
		return nil, err
	}

	s.logger.Info("document deleted", "path", target.Rel, "root", target.Root, "revision", record.Revision)
	return record, nil
}

func (s *service) List(ctx context.Context, prefix string) ([]string, error) {
	target, repo, err := s.resolve(prefix, true)
	if err != nil {
		return nil, err
	}

	files, err := repo.ListFiles(ctx, "", repoPath(target))
	if err != nil {
		return nil, err
	}

	docs := files[:0]
	for _, f := range files {
		if f != ignoreFile {
			docs = append(docs, f)
		}
	}
	return docs, nil
}

func (s *service) Search(ctx context.Context, prefix string, query string, limit int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "search query is empty")
	}
	target, repo, err := s.resolve(prefix, true)
	if err != nil {
		return nil, err
	}
	files, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var hits []SearchHit
	for _, f := range files {
		if limit > 0 && len(hits) >= limit {
			break
		}
		content, err := repo.ReadFile(ctx, "", f)
		if err != nil {
			return nil, err
		}

		meta, body := ParseFrontmatter(content)
		title, _ := meta["title"].(string)
		text := string(body)

		idx := strings.Index(strings.ToLower(text), needle)
		if idx < 0 && !strings.Contains(strings.ToLower(f), needle) && !strings.Contains(strings.ToLower(title), needle) {
			continue
		}
		hits = append(hits, SearchHit{
			Path:    f,
			Root:    target.Root,
			Title:   title,
			Snippet: snippet(text, idx, len(needle)),
		})
	}
	return hits, nil
}

func snippet(text string, idx, n int) string {
	if idx < 0 || idx > len(text) {
		idx, n = 0, 0
	}
	start := max(0, idx-snippetRadius)
	end := min(len(text), idx+n+snippetRadius)
	// keep cut points on rune boundaries
	for start > 0 && !isRuneStart(text[start]) {
		start--
	}
	for end < len(text) && !isRuneStart(text[end]) {
		end++
	}
	return strings.TrimSpace(text[start:end])
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func (s *service) History(ctx context.Context, path string, limit int) ([]vcs.CommitRecord, error) {
	target, repo, err := s.resolve(path, true)
	if err != nil {
		return nil, err
	}
	return repo.History(ctx, repoPath(target), limit)
}

func (s *service) Diff(ctx context.Context, repository string, from, to string) ([]vcs.Change, error) {
	root, err := s.sandbox.RootFor(repository)
	if err != nil {
		return nil, err
	}
	repo, err := s.repos.Get(root)
	if err != nil {
		return nil, err
	}
	return repo.Diff(ctx, from, to)
}

func (s *service) DiffContent(ctx context.Context, path string, from, to string) (*ContentDiff, error) {
	if from == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "from revision is required")
	}
	target, repo, err := s.resolve(path, false)
	if err != nil {
		return nil, err
	}

	fromRev, err := repo.ResolveRevision(ctx, from)
	if err != nil {
		return nil, err
	}
	toRev, err := repo.ResolveRevision(ctx, to)
	if err != nil {
		return nil, err
	}
	before, beforeOK, err := contentAt(ctx, repo, fromRev, target.Rel)
	if err != nil {
		return nil, err
	}
	after, afterOK, err := contentAt(ctx, repo, toRev, target.Rel)
	if err != nil {
		return nil, err
	}
	if !beforeOK && !afterOK {
		return nil, errors.Wrapf(errors.ErrNotFound, "document %s at %s and %s", target.Rel, from, to)
	}

	fromFile, toFile := "a/"+target.Rel, "b/"+target.Rel
	if !beforeOK {
		fromFile = "/dev/null"
	}
	if !afterOK {
		toFile = "/dev/null"
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  3,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to diff %s", target.Rel)
	}
	return &ContentDiff{
		Path: target.Rel,
		Root: target.Root,
		From: fromRev,
		To:   toRev,
		Diff: diff,
	}, nil
}

func contentAt(ctx context.Context, repo vcs.Repository, revision, path string) ([]byte, bool, error) {
	if revision == "" {
		return nil, false, nil
	}
	content, err := repo.ReadFile(ctx, revision, path)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return content, true, nil
}

func (s *service) Revert(ctx context.Context, repository string, revision string, opts ...WriteOption) (*vcs.CommitRecord, error) {
	if revision == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "revision is required")
	}
	root, err := s.sandbox.RootFor(repository)
	if err != nil {
		return nil, err
	}
	repo, err := s.repos.Get(root)
	if err != nil {
		return nil, err
	}
	o := newWriteOptions(opts)

	ctx, release, err := s.coord.Acquire(ctx, root)
	if err != nil {
		return nil, err
	}
	defer release()

	message, err := render(s.messages.revert, messageData{Revision: revision}, o.message)
	if err != nil {
		return nil, err
	}

	commitCtx, cancel := context.WithTimeout(ctx, s.conf.CommitTimeout)
	defer cancel()

	record, err := repo.Revert(commitCtx, revision, message, o.author)
	if err != nil {
		return nil, err
	}

	s.logger.Info("repository reverted", "root", root, "target", revision, "revision", record.Revision)
	return record, nil
}
