package ingest

import (
	"testing"

	"github.com/habiliai/docstore/config"
	"github.com/habiliai/docstore/errors"
	firecrawl "github.com/mendableai/firecrawl-go"
	"github.com/mokiat/gog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageFromDocument(t *testing.T) {
	page, err := pageFromDocument("https://example.com/a", &firecrawl.FirecrawlDocument{
		Markdown: "# A",
		Metadata: &firecrawl.FirecrawlDocumentMetadata{
			Title:     gog.PtrOf("Example"),
			SourceURL: gog.PtrOf("https://example.com/a/"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, &Page{URL: "https://example.com/a/", Title: "Example", Markdown: "# A"}, page)

	page, err = pageFromDocument("https://example.com/b", &firecrawl.FirecrawlDocument{Markdown: "# B"})
	require.NoError(t, err)
	assert.Equal(t, &Page{URL: "https://example.com/b", Markdown: "# B"}, page)

	_, err = pageFromDocument("https://example.com/c", &firecrawl.FirecrawlDocument{})
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = pageFromDocument("https://example.com/c", nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestNewFirecrawlScraperRequiresKey(t *testing.T) {
	_, err := NewFirecrawlScraper(&config.FireCrawlConfig{APIUrl: "https://api.firecrawl.dev"}, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}
