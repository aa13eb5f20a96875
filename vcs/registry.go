package vcs

import (
	"context"

	"github.com/habiliai/docstore/errors"
)

// Registry holds one repository per storage root.
type Registry struct {
	repos map[string]Repository
	roots []string
}

func NewRegistry(repos ...Repository) *Registry {
	r := &Registry{repos: make(map[string]Repository, len(repos))}
	for _, repo := range repos {
		if _, ok := r.repos[repo.Root()]; ok {
			continue
		}
		r.repos[repo.Root()] = repo
		r.roots = append(r.roots, repo.Root())
	}
	return r
}

// OpenRegistry opens (or initializes) a git repository in every root.
func OpenRegistry(ctx context.Context, roots []string, author Author, opts ...GitOption) (*Registry, error) {
	repos := make([]Repository, 0, len(roots))
	for _, root := range roots {
		repo, err := OpenGit(ctx, root, author, opts...)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return NewRegistry(repos...), nil
}

func (r *Registry) Get(root string) (Repository, error) {
	repo, ok := r.repos[root]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "no repository for root %s", root)
	}
	return repo, nil
}

func (r *Registry) Roots() []string {
	return append([]string(nil), r.roots...)
}
