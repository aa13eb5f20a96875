// Package sandbox confines every path the store touches to a fixed set of
// storage roots.
package sandbox

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/habiliai/docstore/errors"
)

// Reserved names may not appear as a path component inside a root.
var Reserved = []string{".git", ".knowledge"}

type Resolved struct {
	// Root is the canonical storage root containing the path.
	Root string
	// Abs is the canonical absolute path.
	Abs string
	// Rel is Abs relative to Root in slash form, "." for the root itself.
	Rel string
}

func (r Resolved) IsRoot() bool {
	return r.Rel == "."
}

type Sandbox struct {
	roots []string
	// byLength holds roots longest first so nested roots match tightest.
	byLength []string
}

// New canonicalizes roots, creating any that do not exist yet.
func New(roots ...string) (*Sandbox, error) {
	if len(roots) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "no storage roots configured")
	}

	s := &Sandbox{}
	seen := map[string]bool{}
	for _, root := range roots {
		canonical, err := canonicalRoot(root)
		if err != nil {
			return nil, err
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		s.roots = append(s.roots, canonical)
	}

	s.byLength = append([]string(nil), s.roots...)
	sort.SliceStable(s.byLength, func(i, j int) bool {
		return len(s.byLength[i]) > len(s.byLength[j])
	})
	return s, nil
}

func canonicalRoot(root string) (string, error) {
	expanded, err := expandHome(root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.Wrapf(errors.ErrInvalidConfig, "storage root %s: %v", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", errors.Wrapf(errors.ErrInvalidConfig, "storage root %s: %v", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.Wrapf(errors.ErrInvalidConfig, "storage root %s: %v", root, err)
	}
	return resolved, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrapf(err, "failed to expand %s", path)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Roots returns the canonical roots in configured order.
func (s *Sandbox) Roots() []string {
	return append([]string(nil), s.roots...)
}

// DefaultRoot is the root relative paths are resolved against.
func (s *Sandbox) DefaultRoot() string {
	return s.roots[0]
}

// Resolve canonicalizes path and checks that it lies under a root. Relative
// paths are taken relative to the default root. Symlinks are followed on the
// longest existing prefix, so a new file under a symlinked directory is judged
// by where it would really land.
func (s *Sandbox) Resolve(path string) (Resolved, error) {
	expanded, err := expandHome(strings.TrimSpace(path))
	if err != nil {
		return Resolved{}, err
	}

	candidate := expanded
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(s.DefaultRoot(), candidate)
	}
	candidate = evalExistingPrefix(filepath.Clean(candidate))

	root, rel, ok := s.contain(candidate)
	if !ok {
		return Resolved{}, errors.Wrapf(errors.ErrOutOfBounds, "%s resolves outside every storage root", path)
	}

	if rel != "." {
		for _, part := range strings.Split(rel, "/") {
			for _, reserved := range Reserved {
				if part == reserved {
					return Resolved{}, errors.Wrapf(errors.ErrOutOfBounds, "%s is inside reserved directory %s", path, reserved)
				}
			}
		}
	}

	return Resolved{Root: root, Abs: candidate, Rel: rel}, nil
}

// RootFor returns the root containing path. It accepts a root itself or any
// path inside one; an empty string selects the default root.
func (s *Sandbox) RootFor(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return s.DefaultRoot(), nil
	}
	resolved, err := s.Resolve(path)
	if err != nil {
		return "", err
	}
	return resolved.Root, nil
}

func (s *Sandbox) contain(candidate string) (root string, rel string, ok bool) {
	for _, root := range s.byLength {
		r, err := filepath.Rel(root, candidate)
		if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) || filepath.IsAbs(r) {
			continue
		}
		return root, filepath.ToSlash(r), true
	}
	return "", "", false
}

// evalExistingPrefix resolves symlinks on the deepest existing ancestor of
// path and re-attaches the remaining segments.
func evalExistingPrefix(path string) string {
	var rest []string
	current := path
	for {
		if resolved, err := filepath.EvalSymlinks(current); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path
		}
		rest = append([]string{filepath.Base(current)}, rest...)
		current = parent
	}
}
