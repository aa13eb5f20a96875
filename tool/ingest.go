package tool

import (
	"context"

	"github.com/habiliai/docstore/document"
	"github.com/habiliai/docstore/ingest"
	"github.com/habiliai/docstore/knowledge"
)

type IngestedPage struct {
	URL      string             `json:"url"`
	Document *document.Document `json:"document,omitempty"`
	Source   *knowledge.Entity  `json:"source,omitempty"`
	Error    *Error             `json:"error,omitempty" jsonschema:"description=Why this page was not stored"`
}

func (c *Catalog) registerIngestTools() error {
	if err := register(c, "scrape_urls_to_documents",
		`Scrape several web pages in parallel and store each one as scrape_to_document does. A page that fails is reported with its error and does not stop the others.`,
		func(ctx context.Context, req struct {
			URLs []string `json:"urls" jsonschema:"required,minItems=1,description=Absolute http(s) URLs to scrape"`
		}) (resp struct {
			Pages []IngestedPage `json:"pages" jsonschema:"description=One entry per URL in request order"`
		}, err error) {
			reqs := make([]ingest.Request, 0, len(req.URLs))
			for _, u := range req.URLs {
				reqs = append(reqs, ingest.Request{URL: u})
			}
			var items []ingest.BatchItem
			items, err = c.backend.IngestAll(ctx, reqs)
			if err != nil {
				return
			}
			resp.Pages = make([]IngestedPage, 0, len(items))
			for _, item := range items {
				page := IngestedPage{URL: item.Request.URL}
				if item.Err != nil {
					page.Error = NewError(item.Err)
				} else {
					page.Document = item.Result.Document
					page.Source = item.Result.Source
				}
				resp.Pages = append(resp.Pages, page)
			}
			return
		},
	); err != nil {
		return err
	}

	return register(c, "scrape_to_document",
		`Fetch a web page as markdown and store it as a document with title, source_url and scraped_at metadata. The page is also recorded as a source:<url> entity linked to the document.`,
		func(ctx context.Context, req struct {
			URL  string `json:"url" jsonschema:"required,description=Absolute http(s) URL to scrape"`
			Path string `json:"path,omitempty" jsonschema:"description=Target document path. Defaults to scraped/<host>/<slug>.md"`
		}) (resp struct {
			Document *document.Document `json:"document"`
			Source   *knowledge.Entity  `json:"source" jsonschema:"description=The source entity of the page"`
		}, err error) {
			var result *ingest.Result
			result, err = c.backend.Ingest(ctx, ingest.Request{URL: req.URL, Path: req.Path})
			if err != nil {
				return
			}
			resp.Document = result.Document
			resp.Source = result.Source
			return
		},
	)
}
