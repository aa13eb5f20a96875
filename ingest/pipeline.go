package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/habiliai/docstore/coordinator"
	"github.com/habiliai/docstore/document"
	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/internal/stringutils"
	"github.com/habiliai/docstore/knowledge"
	"github.com/habiliai/docstore/sandbox"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const sourceKeyPrefix = "source:"

type (
	Request struct {
		URL string
		// Path overrides the derived scraped/<host>/<slug>.md target.
		Path string
	}

	Result struct {
		Document *document.Document
		Source   *knowledge.Entity
	}
)

// Pipeline stores scraped pages as documents and links each one to a
// source:<url> entity in the knowledge graph.
type Pipeline struct {
	scraper   Scraper
	docs      document.Service
	graph     knowledge.Service
	sandbox   *sandbox.Sandbox
	coord     *coordinator.Coordinator
	graphLock string
	now       func() time.Time
	logger    *slog.Logger
}

// NewPipeline builds a pipeline. scraper may be nil, in which case Ingest
// fails with ErrScraperDisabled and only IngestContent works.
func NewPipeline(
	scraper Scraper,
	docs document.Service,
	graph knowledge.Service,
	sb *sandbox.Sandbox,
	coord *coordinator.Coordinator,
	graphLock string,
	now func() time.Time,
	logger *slog.Logger,
) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		scraper:   scraper,
		docs:      docs,
		graph:     graph,
		sandbox:   sb,
		coord:     coord,
		graphLock: graphLock,
		now:       now,
		logger:    logger,
	}
}

func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	if p.scraper == nil {
		return nil, errors.Wrapf(errors.ErrScraperDisabled, "set FIRECRAWL_API_KEY to scrape %s", req.URL)
	}
	if _, err := parseURL(req.URL); err != nil {
		return nil, err
	}

	page, err := p.scraper.Scrape(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	if page.URL == "" {
		page.URL = req.URL
	}
	return p.IngestContent(ctx, req.Path, page)
}

// IngestContent writes page as a document and upserts its source entity.
// Both the document's root and the graph stay locked until the entity is
// stored.
func (p *Pipeline) IngestContent(ctx context.Context, path string, page *Page) (*Result, error) {
	if _, err := parseURL(page.URL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(page.Markdown) == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "page %s has no content", page.URL)
	}
	if path == "" {
		derived, err := TargetPath(page.URL)
		if err != nil {
			return nil, err
		}
		path = derived
	}
	target, err := p.sandbox.Resolve(path)
	if err != nil {
		return nil, err
	}

	content, err := Render(page, p.now())
	if err != nil {
		return nil, err
	}

	attrs := map[string]knowledge.Value{
		"url": knowledge.String(page.URL),
	}
	if title := stringutils.SanitizeLine(page.Title); title != "" {
		attrs["title"] = knowledge.String(title)
	}
	key := sourceKeyPrefix + page.URL
	provenance := knowledge.WithProvenance(target.Abs)

	ctx, release, err := p.coord.Acquire(ctx, target.Root, p.graphLock)
	if err != nil {
		return nil, err
	}
	defer release()

	// The graph stays locked from here on, so an entity that passes the
	// check can only fail to upsert if it cannot be persisted.
	if err := p.graph.CheckUpsert(ctx, key, attrs, provenance); err != nil {
		return nil, errors.Wrapf(err, "source entity of %s", page.URL)
	}

	doc, err := p.docs.Write(ctx, target.Abs, content)
	if err != nil {
		return nil, err
	}

	source, err := p.graph.Upsert(ctx, key, attrs, provenance)
	if err != nil {
		return nil, errors.Wrapf(err, "document %s was stored but its source entity was not", doc.Path)
	}

	p.logger.Info("page ingested", "url", page.URL, "path", doc.Path, "revision", doc.Revision)
	return &Result{Document: doc, Source: source}, nil
}

// BatchItem is the outcome of one request of IngestAll. Exactly one of
// Result and Err is set.
type BatchItem struct {
	Request Request
	Result  *Result
	Err     error
}

// IngestAll ingests every request, scraping up to concurrency pages at
// once. A failed request does not stop the others; items keep the order of
// reqs.
func (p *Pipeline) IngestAll(ctx context.Context, reqs []Request, concurrency int) ([]BatchItem, error) {
	if len(reqs) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "no urls to ingest")
	}
	if p.scraper == nil {
		return nil, errors.Wrapf(errors.ErrScraperDisabled, "set FIRECRAWL_API_KEY to scrape %d urls", len(reqs))
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	items := make([]BatchItem, len(reqs))
	var eg errgroup.Group
	eg.SetLimit(concurrency)
	for i, req := range reqs {
		eg.Go(func() error {
			items[i].Request = req
			items[i].Result, items[i].Err = p.Ingest(ctx, req)
			if items[i].Err != nil {
				p.logger.Warn("page not ingested", "url", req.URL, "err", items[i].Err)
			}
			return nil
		})
	}
	_ = eg.Wait()

	failed := lo.CountBy(items, func(item BatchItem) bool {
		return item.Err != nil
	})
	p.logger.Info("batch ingested", "urls", len(reqs), "failed", failed)
	return items, nil
}
