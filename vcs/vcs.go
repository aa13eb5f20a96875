// Package vcs records every change to a storage root as a commit.
package vcs

import (
	"context"
	"time"

	"github.com/samber/lo"
)

type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

type Change struct {
	Path string     `json:"path"`
	Kind ChangeKind `json:"kind"`
}

type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (a Author) IsZero() bool {
	return a.Name == "" && a.Email == ""
}

type CommitRecord struct {
	Revision string    `json:"revision"`
	Author   Author    `json:"author"`
	Time     time.Time `json:"time"`
	Message  string    `json:"message"`
	Parents  []string  `json:"parents,omitempty"`
	Changes  []Change  `json:"changes"`
}

func (c *CommitRecord) Paths() []string {
	return lo.Map(c.Changes, func(ch Change, _ int) string {
		return ch.Path
	})
}

// Repository is a linear, append-only history over one storage root. Paths
// are slash separated and relative to the root. An empty revision means the
// current head.
type Repository interface {
	Root() string
	Head() string

	// Commit records the working tree state of paths. It fails with
	// ErrNothingToCommit when none of them differ from the head, and with
	// ErrRepositoryState when the backend refuses the change. On any
	// failure the paths are restored to the head before returning.
	Commit(ctx context.Context, paths []string, message string, author *Author) (*CommitRecord, error)

	// Revert adds a commit whose tree equals the tree of revision.
	Revert(ctx context.Context, revision string, message string, author *Author) (*CommitRecord, error)

	// History lists commits touching path, newest first. An empty path
	// lists every commit. limit <= 0 means no limit.
	History(ctx context.Context, path string, limit int) ([]CommitRecord, error)

	Diff(ctx context.Context, from, to string) ([]Change, error)
	// ResolveRevision returns the commit hash revision names. It fails
	// with ErrNotFound for an unknown revision and returns "" for the head
	// of an empty repository.
	ResolveRevision(ctx context.Context, revision string) (string, error)
	ReadFile(ctx context.Context, revision, path string) ([]byte, error)
	ListFiles(ctx context.Context, revision, prefix string) ([]string, error)
}
