package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/habiliai/docstore/errors"
	"github.com/samber/lo"
)

type Config struct {
	Store     StoreConfig     `yaml:"store" env:",squash"`
	Knowledge KnowledgeConfig `yaml:"knowledge" env:",squash"`
	Log       LogConfig       `yaml:"log" env:",squash"`
	Server    ServerConfig    `yaml:"server" env:",squash"`
	FireCrawl FireCrawlConfig `yaml:"firecrawl" env:",squash"`
}

func NewConfig() *Config {
	return &Config{
		Store:     *NewStoreConfig(),
		Knowledge: *NewKnowledgeConfig(),
		Log:       *NewLogConfig(),
		Server:    *NewServerConfig(),
		FireCrawl: *NewFireCrawlConfig(),
	}
}

func (c *Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	return c.Knowledge.Validate()
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("store", c.Store),
		slog.Any("knowledge", c.Knowledge),
		slog.Any("log", c.Log),
		slog.Any("server", c.Server),
		slog.Any("firecrawl", c.FireCrawl),
	)
}

// Load builds a Config from defaults, an optional YAML file, .env files and
// the process environment, in increasing order of precedence.
func Load(file string) (*Config, error) {
	conf := NewConfig()
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", file)
		}
		if err := yaml.Unmarshal(data, conf); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "failed to parse config file %s: %v", file, err)
		}
	}

	if err := resolveConfig(conf, false); err != nil {
		return nil, err
	}
	conf.normalize()

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) normalize() {
	c.Store.Roots = lo.Compact(lo.Map(c.Store.Roots, func(root string, _ int) string {
		return strings.TrimSpace(root)
	}))
	c.Knowledge.Backend = strings.ToLower(strings.TrimSpace(c.Knowledge.Backend))
}
