package ingest

import (
	"context"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/habiliai/docstore/document"
	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/internal/stringutils"
)

const (
	scrapedDir    = "scraped"
	maxSlugLength = 80
)

// Page is a scraped web page converted to markdown.
type Page struct {
	URL      string
	Title    string
	Markdown string
}

type Scraper interface {
	Scrape(ctx context.Context, url string) (*Page, error)
}

// Render turns page into a markdown document whose frontmatter records where
// and when it was scraped. Control characters are stripped from the title
// and body.
func Render(page *Page, scrapedAt time.Time) ([]byte, error) {
	var meta yaml.MapSlice
	if title := stringutils.SanitizeLine(page.Title); title != "" {
		meta = append(meta, yaml.MapItem{Key: "title", Value: title})
	}
	meta = append(meta,
		yaml.MapItem{Key: "source_url", Value: page.URL},
		yaml.MapItem{Key: "scraped_at", Value: scrapedAt.UTC().Format(time.RFC3339)},
	)

	body := stringutils.Sanitize(page.Markdown)
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return document.RenderFrontmatter(meta, []byte(body))
}

// TargetPath derives the document path for a scraped URL:
// scraped/<host>/<slug>.md.
func TargetPath(rawURL string) (string, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return "", err
	}
	return path.Join(scrapedDir, strings.ToLower(u.Hostname()), slug(u.Path)+".md"), nil
}

func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "invalid url %q: %v", rawURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "url %q must be absolute http(s)", rawURL)
	}
	return u, nil
}

func slug(p string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(p) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}

	s := strings.TrimRight(b.String(), "-")
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	if s == "" {
		return "index"
	}
	return s
}
