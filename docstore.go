package docstore

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/habiliai/docstore/config"
	"github.com/habiliai/docstore/coordinator"
	"github.com/habiliai/docstore/document"
	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/ingest"
	"github.com/habiliai/docstore/internal/mylog"
	"github.com/habiliai/docstore/knowledge"
	"github.com/habiliai/docstore/sandbox"
	"github.com/habiliai/docstore/vcs"
)

const knowledgeDir = ".knowledge"

type (
	DocStore struct {
		conf    *config.Config
		logger  *slog.Logger
		now     func() time.Time
		sandbox *sandbox.Sandbox
		coord   *coordinator.Coordinator
		repos   *vcs.Registry

		documents      document.Service
		knowledge      knowledge.Service
		knowledgeStore knowledge.Store
		scraper        ingest.Scraper
		pipeline       *ingest.Pipeline
	}
	Option func(*DocStore)

	IngestRequest = ingest.Request
	IngestResult  = ingest.Result
	IngestItem    = ingest.BatchItem
)

func WithConfig(conf *config.Config) Option {
	return func(s *DocStore) {
		s.conf = conf
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *DocStore) {
		s.logger = logger
	}
}

// WithScraper replaces the Firecrawl scraper built from the configuration.
func WithScraper(scraper ingest.Scraper) Option {
	return func(s *DocStore) {
		s.scraper = scraper
	}
}

// WithKnowledgeStore replaces the knowledge backend selected by the
// configuration. The store is closed by Close.
func WithKnowledgeStore(store knowledge.Store) Option {
	return func(s *DocStore) {
		s.knowledgeStore = store
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *DocStore) {
		s.now = now
	}
}

// New opens or initializes a repository in every configured root and loads
// the knowledge graph.
func New(ctx context.Context, optionFuncs ...Option) (*DocStore, error) {
	s := &DocStore{
		conf: config.NewConfig(),
		now:  time.Now,
	}
	for _, f := range optionFuncs {
		f(s)
	}

	if s.logger == nil {
		s.logger = mylog.NewLogger(s.conf.Log.LogLevel, s.conf.Log.LogHandler)
	}
	if err := s.conf.Validate(); err != nil {
		return nil, err
	}

	var err error
	s.sandbox, err = sandbox.New(s.conf.Store.Roots...)
	if err != nil {
		return nil, err
	}

	author := vcs.Author{Name: s.conf.Store.AuthorName, Email: s.conf.Store.AuthorEmail}
	s.repos, err = vcs.OpenRegistry(ctx, s.sandbox.Roots(), author, vcs.WithLogger(s.logger), vcs.WithClock(s.now))
	if err != nil {
		return nil, err
	}
	s.coord = coordinator.New(s.conf.Store.LockTimeout, s.logger)

	s.documents, err = document.NewService(s.sandbox, s.coord, s.repos, &s.conf.Store, s.logger)
	if err != nil {
		return nil, err
	}

	lockKey := "knowledge"
	if s.knowledgeStore == nil {
		path := s.knowledgePath()
		s.knowledgeStore, err = s.openKnowledgeStore(ctx, path, author)
		if err != nil {
			return nil, err
		}
		lockKey = "knowledge:" + path
	}

	s.knowledge, err = knowledge.NewService(ctx, s.knowledgeStore, s.coord, lockKey,
		knowledge.WithSandbox(s.sandbox),
		knowledge.WithDocuments(s.documents),
		knowledge.WithHistory(s.conf.Knowledge.History),
		knowledge.WithClock(s.now),
		knowledge.WithLogger(s.logger),
	)
	if err != nil {
		s.knowledgeStore.Close()
		return nil, err
	}

	if s.scraper == nil && s.conf.FireCrawl.Enabled() {
		s.scraper, err = ingest.NewFirecrawlScraper(&s.conf.FireCrawl, s.logger)
		if err != nil {
			s.knowledgeStore.Close()
			return nil, err
		}
	}
	s.pipeline = ingest.NewPipeline(s.scraper, s.documents, s.knowledge, s.sandbox, s.coord, lockKey, s.now, s.logger)

	s.logger.Info("docstore ready", "roots", s.sandbox.Roots(), "knowledge_backend", s.conf.Knowledge.Backend)
	return s, nil
}

func (s *DocStore) knowledgePath() string {
	if s.conf.Knowledge.Path != "" {
		return s.conf.Knowledge.Path
	}
	name := "graph.json"
	if s.conf.Knowledge.Backend == config.KnowledgeBackendSqlite {
		name = "graph.db"
	}
	return filepath.Join(s.sandbox.DefaultRoot(), knowledgeDir, name)
}

func (s *DocStore) openKnowledgeStore(ctx context.Context, path string, author vcs.Author) (knowledge.Store, error) {
	switch s.conf.Knowledge.Backend {
	case config.KnowledgeBackendMemory:
		return knowledge.NewMemoryStore(), nil
	case config.KnowledgeBackendSqlite:
		return knowledge.NewSqliteStore(path)
	case config.KnowledgeBackendFile:
		if s.conf.Knowledge.Versioned {
			return knowledge.NewVersionedStore(ctx, path, author, s.logger)
		}
		return knowledge.NewFileStore(path), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "unknown knowledge backend %q", s.conf.Knowledge.Backend)
	}
}

func (s *DocStore) Config() *config.Config {
	return s.conf
}

func (s *DocStore) Logger() *slog.Logger {
	return s.logger
}

func (s *DocStore) Roots() []string {
	return s.sandbox.Roots()
}

func (s *DocStore) Documents() document.Service {
	return s.documents
}

func (s *DocStore) Knowledge() knowledge.Service {
	return s.knowledge
}

// ScraperEnabled reports whether Ingest can fetch pages.
func (s *DocStore) ScraperEnabled() bool {
	return s.scraper != nil
}

// Ingest scrapes req.URL into a document and records its source entity.
func (s *DocStore) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	return s.pipeline.Ingest(ctx, req)
}

// IngestAll ingests every request, scraping up to firecrawl.maxConcurrency
// pages at once. Per-URL failures are reported in the items.
func (s *DocStore) IngestAll(ctx context.Context, reqs []IngestRequest) ([]IngestItem, error) {
	return s.pipeline.IngestAll(ctx, reqs, s.conf.FireCrawl.MaxConcurrency)
}

// IngestContent stores already fetched markdown as if it had been scraped
// from sourceURL.
func (s *DocStore) IngestContent(ctx context.Context, path, markdown, title, sourceURL string) (*IngestResult, error) {
	return s.pipeline.IngestContent(ctx, path, &ingest.Page{
		URL:      sourceURL,
		Title:    title,
		Markdown: markdown,
	})
}

func (s *DocStore) Close() error {
	return s.knowledgeStore.Close()
}
