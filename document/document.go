// Package document stores files under the storage roots and commits every
// change.
package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/habiliai/docstore/vcs"
)

type Document struct {
	// Path is relative to Root, slash separated.
	Path       string         `json:"path"`
	Root       string         `json:"root"`
	Content    []byte         `json:"-"`
	Hash       string         `json:"hash"`
	ModifiedAt time.Time      `json:"modified_at"`
	Revision   string         `json:"revision"`
	Meta       map[string]any `json:"meta,omitempty"`
}

func (d *Document) Text() string {
	return string(d.Content)
}

// Title is the frontmatter title, if any.
func (d *Document) Title() string {
	title, _ := d.Meta["title"].(string)
	return title
}

type SearchHit struct {
	Path    string `json:"path"`
	Root    string `json:"root"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet"`
}

// ContentDiff is a unified diff of one document between two revisions.
type ContentDiff struct {
	Path string `json:"path"`
	Root string `json:"root"`
	From string `json:"from"`
	To   string `json:"to"`
	// Diff is empty when the content is identical.
	Diff string `json:"diff"`
}

// Hash returns the hex SHA-256 of content.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

type Service interface {
	// Write stores content at path and commits it. Writing the content
	// already committed at path is a no-op returning the current document.
	Write(ctx context.Context, path string, content []byte, opts ...WriteOption) (*Document, error)
	Read(ctx context.Context, path string) (*Document, error)
	ReadAt(ctx context.Context, path string, revision string) (*Document, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Delete removes the document in a commit of its own. Its history
	// remains queryable.
	Delete(ctx context.Context, path string, opts ...WriteOption) (*vcs.CommitRecord, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Search(ctx context.Context, prefix string, query string, limit int) ([]SearchHit, error)

	History(ctx context.Context, path string, limit int) ([]vcs.CommitRecord, error)
	Diff(ctx context.Context, repo string, from, to string) ([]vcs.Change, error)
	// DiffContent compares the content of the document at path between two
	// revisions. An empty to means the current head. A document missing at
	// one of them diffs against empty content.
	DiffContent(ctx context.Context, path string, from, to string) (*ContentDiff, error)
	Revert(ctx context.Context, repo string, revision string, opts ...WriteOption) (*vcs.CommitRecord, error)
}

type WriteOption func(*writeOptions)

type writeOptions struct {
	message string
	author  *vcs.Author
}

// WithMessage replaces the templated commit message.
func WithMessage(message string) WriteOption {
	return func(o *writeOptions) {
		o.message = message
	}
}

func WithAuthor(author vcs.Author) WriteOption {
	return func(o *writeOptions) {
		if !author.IsZero() {
			o.author = &author
		}
	}
}

func newWriteOptions(opts []WriteOption) *writeOptions {
	o := &writeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
