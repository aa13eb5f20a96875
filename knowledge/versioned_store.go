package knowledge

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/vcs"
)

const graphCommitMessage = "Update knowledge graph"

// VersionedStore is a FileStore whose directory is a git repository of its
// own. Every save that changes the snapshot becomes a commit there; document
// repositories never see it.
type VersionedStore struct {
	*FileStore
	repo vcs.Repository
	name string
}

var _ Store = (*VersionedStore)(nil)

func NewVersionedStore(ctx context.Context, path string, author vcs.Author, logger *slog.Logger) (*VersionedStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for %s", path)
	}
	repo, err := vcs.OpenGit(ctx, filepath.Dir(path), author, vcs.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &VersionedStore{
		FileStore: NewFileStore(path),
		repo:      repo,
		name:      filepath.Base(path),
	}, nil
}

func (s *VersionedStore) Save(ctx context.Context, g *Graph) error {
	if err := s.FileStore.Save(ctx, g); err != nil {
		return err
	}
	_, err := s.repo.Commit(ctx, []string{s.name}, graphCommitMessage, nil)
	if err != nil && !errors.Is(err, errors.ErrNothingToCommit) {
		return err
	}
	return nil
}

// History lists snapshot commits, newest first.
func (s *VersionedStore) History(ctx context.Context, limit int) ([]vcs.CommitRecord, error) {
	return s.repo.History(ctx, s.name, limit)
}
