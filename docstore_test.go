package docstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/habiliai/docstore"
	"github.com/habiliai/docstore/config"
	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/ingest"
	"github.com/habiliai/docstore/internal/mylog"
	"github.com/habiliai/docstore/internal/mytesting"
	"github.com/habiliai/docstore/knowledge"
	"github.com/stretchr/testify/suite"
)

type DocStoreTestSuite struct {
	mytesting.Suite
}

func TestDocStore(t *testing.T) {
	suite.Run(t, new(DocStoreTestSuite))
}

type staticScraper struct{}

func (staticScraper) Scrape(_ context.Context, url string) (*ingest.Page, error) {
	return &ingest.Page{URL: url, Title: "Static", Markdown: "static page"}, nil
}

func (s *DocStoreTestSuite) open(opts ...docstore.Option) *docstore.DocStore {
	opts = append([]docstore.Option{docstore.WithConfig(s.Config), docstore.WithLogger(mylog.Discard())}, opts...)
	ds, err := docstore.New(s, opts...)
	s.Require().NoError(err)
	s.T().Cleanup(func() { ds.Close() })
	return ds
}

func (s *DocStoreTestSuite) TestNewInitializesRoots() {
	ds := s.open()

	s.DirExists(filepath.Join(s.Root, ".git"))
	s.FileExists(filepath.Join(s.Root, ".gitignore"))
	s.Equal([]string{s.Root}, ds.Roots())
	s.False(ds.ScraperEnabled())

	history, err := ds.Documents().History(s, "", 0)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal("Initial commit", history[0].Message)
	s.Equal(config.DefaultAuthorName, history[0].Author.Name)
}

func (s *DocStoreTestSuite) TestKnowledgeSnapshotStaysOutOfDocumentHistory() {
	ds := s.open()

	_, err := ds.Knowledge().Upsert(s, "topic:go", map[string]knowledge.Value{"name": knowledge.String("Go")})
	s.Require().NoError(err)
	s.FileExists(filepath.Join(s.Root, ".knowledge", "graph.json"))

	history, err := ds.Documents().History(s, "", 0)
	s.Require().NoError(err)
	s.Len(history, 1)

	files, err := ds.Documents().List(s, "")
	s.Require().NoError(err)
	s.Empty(files)

	reopened := s.open()
	e, err := reopened.Knowledge().Get(s, "topic:go")
	s.Require().NoError(err)
	s.Equal(knowledge.String("Go"), e.Attributes["name"])
}

func (s *DocStoreTestSuite) TestBackends() {
	for _, backend := range []string{config.KnowledgeBackendSqlite, config.KnowledgeBackendMemory} {
		s.Run(backend, func() {
			s.Config.Knowledge.Backend = backend
			s.Config.Knowledge.Path = filepath.Join(s.T().TempDir(), "graph."+backend)
			ds := s.open()

			_, err := ds.Knowledge().Upsert(s, "k", map[string]knowledge.Value{"v": knowledge.Number(1)})
			s.Require().NoError(err)
			e, err := ds.Knowledge().Get(s, "k")
			s.Require().NoError(err)
			s.Equal(knowledge.Number(1), e.Attributes["v"])
		})
	}
}

func (s *DocStoreTestSuite) TestVersionedKnowledge() {
	s.Config.Knowledge.Versioned = true
	ds := s.open()

	_, err := ds.Knowledge().Upsert(s, "k", map[string]knowledge.Value{"v": knowledge.Bool(true)})
	s.Require().NoError(err)
	s.DirExists(filepath.Join(s.Root, ".knowledge", ".git"))

	history, err := ds.Documents().History(s, "", 0)
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *DocStoreTestSuite) TestIngest() {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ds := s.open(docstore.WithScraper(staticScraper{}), docstore.WithClock(func() time.Time { return now }))
	s.True(ds.ScraperEnabled())

	result, err := ds.Ingest(s, docstore.IngestRequest{URL: "https://example.com/static"})
	s.Require().NoError(err)
	s.Equal("scraped/example.com/static.md", result.Document.Path)
	s.Equal(now, result.Document.ModifiedAt.UTC())

	_, err = ds.Knowledge().Get(s, "source:https://example.com/static")
	s.Require().NoError(err)

	manual, err := ds.IngestContent(s, "manual/page.md", "# Manual", "Manual", "https://example.com/manual")
	s.Require().NoError(err)
	s.Equal("Manual", manual.Source.Attributes["title"].String())

	items, err := ds.IngestAll(s, []docstore.IngestRequest{
		{URL: "https://example.com/one"},
		{URL: "https://example.com/two"},
	})
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.NoError(items[0].Err)
	s.NoError(items[1].Err)
	s.Equal("scraped/example.com/two.md", items[1].Result.Document.Path)
}

func (s *DocStoreTestSuite) TestIngestWithoutScraper() {
	ds := s.open()

	_, err := ds.Ingest(s, docstore.IngestRequest{URL: "https://example.com"})
	s.ErrorIs(err, errors.ErrScraperDisabled)
	s.Equal(errors.KindUnavailable, errors.KindOf(err))
}

func (s *DocStoreTestSuite) TestInvalidConfig() {
	s.Config.Store.Roots = nil
	_, err := docstore.New(s, docstore.WithConfig(s.Config), docstore.WithLogger(mylog.Discard()))
	s.ErrorIs(err, errors.ErrInvalidConfig)

	s.Config.Store.Roots = []string{s.Root}
	s.Config.Store.AuthorEmail = ""
	_, err = docstore.New(s, docstore.WithConfig(s.Config), docstore.WithLogger(mylog.Discard()))
	s.ErrorIs(err, errors.ErrInvalidConfig)

	_, statErr := os.Stat(filepath.Join(s.Root, ".git"))
	s.True(os.IsNotExist(statErr))
}
