package tool

import (
	"context"

	"github.com/habiliai/docstore/document"
	"github.com/habiliai/docstore/vcs"
)

type (
	DocumentResponse struct {
		Document *document.Document `json:"document" jsonschema:"description=The stored document with its root and content hash and revision"`
		Content  string             `json:"content,omitempty" jsonschema:"description=Full document text including frontmatter"`
	}

	CommitResponse struct {
		Commit *vcs.CommitRecord `json:"commit" jsonschema:"description=The commit that recorded the change"`
	}
)

func writeOptions(message, authorName, authorEmail string) []document.WriteOption {
	var opts []document.WriteOption
	if message != "" {
		opts = append(opts, document.WithMessage(message))
	}
	if authorName != "" || authorEmail != "" {
		opts = append(opts, document.WithAuthor(vcs.Author{Name: authorName, Email: authorEmail}))
	}
	return opts
}

func (c *Catalog) registerDocumentTools() error {
	docs := c.backend.Documents()

	if err := register(c, "write_document",
		`Create or replace a document and commit it. Relative paths are stored under the default root. Writing identical content creates no commit.`,
		func(ctx context.Context, req struct {
			Path        string `json:"path" jsonschema:"required,description=Document path relative to the default root or absolute inside a root (e.g. notes/ideas.md)"`
			Content     string `json:"content" jsonschema:"required,description=Full document text. A leading YAML block fenced by --- lines is parsed as metadata"`
			Message     string `json:"message,omitempty" jsonschema:"description=Commit message. Defaults to 'Create <path>' or 'Update <path>'"`
			AuthorName  string `json:"author_name,omitempty" jsonschema:"description=Commit author name. Defaults to the configured author"`
			AuthorEmail string `json:"author_email,omitempty" jsonschema:"description=Commit author email. Defaults to the configured author"`
		}) (*DocumentResponse, error) {
			doc, err := docs.Write(ctx, req.Path, []byte(req.Content), writeOptions(req.Message, req.AuthorName, req.AuthorEmail)...)
			if err != nil {
				return nil, err
			}
			return &DocumentResponse{Document: doc}, nil
		},
	); err != nil {
		return err
	}

	if err := register(c, "read_document",
		`Read the committed content of a document.`,
		func(ctx context.Context, req struct {
			Path string `json:"path" jsonschema:"required,description=Document path"`
		}) (*DocumentResponse, error) {
			doc, err := docs.Read(ctx, req.Path)
			if err != nil {
				return nil, err
			}
			return &DocumentResponse{Document: doc, Content: doc.Text()}, nil
		},
	); err != nil {
		return err
	}

	if err := register(c, "read_document_at",
		`Read a document as it was at a past revision. Use document_history to find revisions.`,
		func(ctx context.Context, req struct {
			Path     string `json:"path" jsonschema:"required,description=Document path"`
			Revision string `json:"revision" jsonschema:"required,description=Commit hash or any revision git understands"`
		}) (*DocumentResponse, error) {
			doc, err := docs.ReadAt(ctx, req.Path, req.Revision)
			if err != nil {
				return nil, err
			}
			return &DocumentResponse{Document: doc, Content: doc.Text()}, nil
		},
	); err != nil {
		return err
	}

	if err := register(c, "delete_document",
		`Delete a document in a commit of its own. Its history stays readable.`,
		func(ctx context.Context, req struct {
			Path    string `json:"path" jsonschema:"required,description=Document path"`
			Message string `json:"message,omitempty" jsonschema:"description=Commit message. Defaults to 'Delete <path>'"`
		}) (*CommitResponse, error) {
			record, err := docs.Delete(ctx, req.Path, writeOptions(req.Message, "", "")...)
			if err != nil {
				return nil, err
			}
			return &CommitResponse{Commit: record}, nil
		},
	); err != nil {
		return err
	}

	if err := register(c, "list_documents",
		`List committed document paths, optionally below a directory.`,
		func(ctx context.Context, req struct {
			Prefix string `json:"prefix,omitempty" jsonschema:"description=Directory to list. Empty lists the default root"`
		}) (resp struct {
			Paths []string `json:"paths" jsonschema:"description=Document paths relative to their root"`
		}, err error) {
			resp.Paths, err = docs.List(ctx, req.Prefix)
			if resp.Paths == nil {
				resp.Paths = []string{}
			}
			return
		},
	); err != nil {
		return err
	}

	if err := register(c, "search_documents",
		`Case-insensitive text search over document bodies, paths and titles.`,
		func(ctx context.Context, req struct {
			Query  string `json:"query" jsonschema:"required,description=Text to look for"`
			Prefix string `json:"prefix,omitempty" jsonschema:"description=Directory to search. Empty searches the default root"`
			Limit  int    `json:"limit,omitempty" jsonschema:"description=Maximum number of hits. 0 means no limit"`
		}) (resp struct {
			Hits []document.SearchHit `json:"hits" jsonschema:"description=Matching documents with a snippet around the first match"`
		}, err error) {
			resp.Hits, err = docs.Search(ctx, req.Prefix, req.Query, req.Limit)
			if resp.Hits == nil {
				resp.Hits = []document.SearchHit{}
			}
			return
		},
	); err != nil {
		return err
	}

	if err := register(c, "document_history",
		`List the commits that touched a document or directory, newest first.`,
		func(ctx context.Context, req struct {
			Path  string `json:"path,omitempty" jsonschema:"description=Document or directory. Empty lists the whole default root"`
			Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum number of commits. 0 means no limit"`
		}) (resp struct {
			Commits []vcs.CommitRecord `json:"commits"`
		}, err error) {
			resp.Commits, err = docs.History(ctx, req.Path, req.Limit)
			if resp.Commits == nil {
				resp.Commits = []vcs.CommitRecord{}
			}
			return
		},
	); err != nil {
		return err
	}

	if err := register(c, "diff_revisions",
		`List the files that differ between two revisions of a root.`,
		func(ctx context.Context, req struct {
			Repository string `json:"repository,omitempty" jsonschema:"description=Storage root. Empty means the default root"`
			From       string `json:"from" jsonschema:"required,description=Older revision"`
			To         string `json:"to,omitempty" jsonschema:"description=Newer revision. Empty means the current head"`
		}) (resp struct {
			Changes []vcs.Change `json:"changes"`
		}, err error) {
			resp.Changes, err = docs.Diff(ctx, req.Repository, req.From, req.To)
			if resp.Changes == nil {
				resp.Changes = []vcs.Change{}
			}
			return
		},
	); err != nil {
		return err
	}

	if err := register(c, "diff_document",
		`Show a unified diff of one document between two revisions.`,
		func(ctx context.Context, req struct {
			Path string `json:"path" jsonschema:"required,description=Document path"`
			From string `json:"from" jsonschema:"required,description=Older revision"`
			To   string `json:"to,omitempty" jsonschema:"description=Newer revision. Empty means the current head"`
		}) (*document.ContentDiff, error) {
			return docs.DiffContent(ctx, req.Path, req.From, req.To)
		},
	); err != nil {
		return err
	}

	return register(c, "revert_repository",
		`Restore every file of a root to a past revision by adding a new commit. History is never rewritten.`,
		func(ctx context.Context, req struct {
			Repository string `json:"repository,omitempty" jsonschema:"description=Storage root. Empty means the default root"`
			Revision   string `json:"revision" jsonschema:"required,description=Revision to restore"`
			Message    string `json:"message,omitempty" jsonschema:"description=Commit message"`
		}) (*CommitResponse, error) {
			record, err := docs.Revert(ctx, req.Repository, req.Revision, writeOptions(req.Message, "", "")...)
			if err != nil {
				return nil, err
			}
			return &CommitResponse{Commit: record}, nil
		},
	)
}
