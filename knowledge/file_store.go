package knowledge

import (
	"context"
	"os"

	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/internal/fsutil"
)

// FileStore keeps the graph as one JSON file, replaced by rename on every
// save.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (*Graph, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return NewGraph(), nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read knowledge snapshot %s", s.path)
	}
	return decodeSnapshot(data)
}

func (s *FileStore) Save(ctx context.Context, g *Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeSnapshot(g)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.path, data, 0o644)
}

func (s *FileStore) Close() error {
	return nil
}
