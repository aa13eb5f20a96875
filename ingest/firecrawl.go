package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/habiliai/docstore/config"
	"github.com/habiliai/docstore/errors"
	firecrawl "github.com/mendableai/firecrawl-go"
)

// FirecrawlScraper fetches pages as markdown through the Firecrawl API.
type FirecrawlScraper struct {
	app    *firecrawl.FirecrawlApp
	logger *slog.Logger
}

var _ Scraper = (*FirecrawlScraper)(nil)

func NewFirecrawlScraper(conf *config.FireCrawlConfig, logger *slog.Logger) (*FirecrawlScraper, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "FireCrawl configuration is invalid - check FIRECRAWL_API_KEY environment variable")
	}

	app, err := firecrawl.NewFirecrawlApp(conf.APIKey, conf.APIUrl)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create FireCrawl client")
	}
	return &FirecrawlScraper{app: app, logger: logger}, nil
}

func (s *FirecrawlScraper) Scrape(ctx context.Context, rawURL string) (*Page, error) {
	if _, err := parseURL(rawURL); err != nil {
		return nil, err
	}

	type result struct {
		doc *firecrawl.FirecrawlDocument
		err error
	}
	// the client has no context support, so cancellation only stops waiting
	done := make(chan result, 1)
	startTime := time.Now()
	go func() {
		doc, err := s.app.ScrapeURL(rawURL, &firecrawl.ScrapeParams{
			Formats: []string{"markdown"},
		})
		done <- result{doc: doc, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, errors.Wrapf(errors.ErrUpstream, "failed to scrape %s: %v", rawURL, res.err)
	}
	s.logger.Info("page scraped", "url", rawURL, "duration", time.Since(startTime))

	return pageFromDocument(rawURL, res.doc)
}

func pageFromDocument(rawURL string, doc *firecrawl.FirecrawlDocument) (*Page, error) {
	if doc == nil || doc.Markdown == "" {
		return nil, errors.Wrapf(errors.ErrNotFound, "no content retrieved from %s", rawURL)
	}

	page := &Page{URL: rawURL, Markdown: doc.Markdown}
	if doc.Metadata != nil {
		if doc.Metadata.Title != nil {
			page.Title = *doc.Metadata.Title
		}
		if doc.Metadata.SourceURL != nil && *doc.Metadata.SourceURL != "" {
			page.URL = *doc.Metadata.SourceURL
		}
	}
	return page, nil
}
