package config

import (
	"time"

	"github.com/habiliai/docstore/errors"
)

const (
	DefaultAuthorName  = "OtherTales"
	DefaultAuthorEmail = "system@othertales.com"
)

type StoreConfig struct {
	// Roots lists the storage roots documents may live under.
	// The first root is the default for relative paths and holds the
	// knowledge snapshot unless KnowledgeConfig.Path says otherwise.
	// Default: ./data
	Roots []string `yaml:"roots" env:"ALLOWED_DIRS"`

	// AuthorName and AuthorEmail form the commit identity used when a
	// caller supplies none.
	AuthorName  string `yaml:"authorName" env:"DEFAULT_COMMIT_USERNAME"`
	AuthorEmail string `yaml:"authorEmail" env:"DEFAULT_COMMIT_EMAIL"`

	// LockTimeout bounds how long a mutation waits for a repository lock.
	// Default: 10s
	LockTimeout time.Duration `yaml:"lockTimeout" env:"LOCK_TIMEOUT"`

	// CommitTimeout bounds a single commit. A commit that runs past it is
	// rolled back before the lock is released.
	// Default: 30s
	CommitTimeout time.Duration `yaml:"commitTimeout" env:"COMMIT_TIMEOUT"`

	// Messages are text/template commit messages (sprig functions available).
	Messages MessageTemplates `yaml:"messages" env:",squash"`
}

type MessageTemplates struct {
	Write  string `yaml:"write" env:"COMMIT_MESSAGE_WRITE"`
	Delete string `yaml:"delete" env:"COMMIT_MESSAGE_DELETE"`
	Revert string `yaml:"revert" env:"COMMIT_MESSAGE_REVERT"`
}

func NewStoreConfig() *StoreConfig {
	return &StoreConfig{
		Roots:         []string{"./data"},
		AuthorName:    DefaultAuthorName,
		AuthorEmail:   DefaultAuthorEmail,
		LockTimeout:   10 * time.Second,
		CommitTimeout: 30 * time.Second,
		Messages: MessageTemplates{
			Write:  `{{ if .Created }}Create{{ else }}Update{{ end }} {{ .Path }}`,
			Delete: `Delete {{ .Path }}`,
			Revert: `Revert to {{ .Revision | trunc 12 }}`,
		},
	}
}

func (c *StoreConfig) Validate() error {
	if len(c.Roots) == 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "at least one storage root is required")
	}
	if c.AuthorName == "" || c.AuthorEmail == "" {
		return errors.Wrapf(errors.ErrInvalidConfig, "default commit author name and email are required")
	}
	if c.LockTimeout <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "lock timeout must be positive, got %s", c.LockTimeout)
	}
	if c.CommitTimeout <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "commit timeout must be positive, got %s", c.CommitTimeout)
	}
	return nil
}
