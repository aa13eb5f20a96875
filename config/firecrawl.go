package config

import (
	"log/slog"

	"github.com/habiliai/docstore/errors"
)

type FireCrawlConfig struct {
	APIKey string `yaml:"apiKey" env:"FIRECRAWL_API_KEY"`
	APIUrl string `yaml:"apiUrl" env:"FIRECRAWL_API_URL"`

	// MaxConcurrency bounds the pages scraped at once by a batch ingest.
	// Default: 4
	MaxConcurrency int `yaml:"maxConcurrency" env:"FIRECRAWL_MAX_CONCURRENCY"`
}

func (c *FireCrawlConfig) Validate() error {
	if c.APIKey == "" {
		return errors.Wrapf(errors.ErrInvalidConfig, "firecrawl api_key is required")
	}
	return nil
}

func (c *FireCrawlConfig) Enabled() bool {
	return c.APIKey != ""
}

// LogValue never prints the API key.
func (c FireCrawlConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", c.Enabled()),
		slog.String("apiUrl", c.APIUrl),
		slog.Int("maxConcurrency", c.MaxConcurrency),
	)
}

func NewFireCrawlConfig() *FireCrawlConfig {
	return &FireCrawlConfig{
		APIUrl:         "https://api.firecrawl.dev",
		MaxConcurrency: 4,
	}
}
