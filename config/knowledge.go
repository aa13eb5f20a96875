package config

import (
	"github.com/habiliai/docstore/errors"
)

const (
	KnowledgeBackendFile   = "file"
	KnowledgeBackendSqlite = "sqlite"
	KnowledgeBackendMemory = "memory"
)

type KnowledgeConfig struct {
	// Path is where the graph is persisted. For the file backend it is the
	// JSON snapshot, for sqlite the database file.
	// Default: <first root>/.knowledge/graph.json (or graph.db for sqlite)
	Path string `yaml:"path" env:"KNOWLEDGE_PATH"`

	// Backend selects the persistence backend: "file", "sqlite" or "memory".
	// The memory backend forgets the graph when the process exits.
	// Default: file
	Backend string `yaml:"backend" env:"KNOWLEDGE_BACKEND"`

	// Versioned commits every file snapshot into a git repository of its
	// own, next to the snapshot. Document repositories are not touched.
	// Only honored by the file backend.
	// Default: false
	Versioned bool `yaml:"versioned" env:"KNOWLEDGE_VERSIONED"`

	// History keeps up to this many overwritten values per entity.
	// Zero disables it.
	// Default: 0
	History int `yaml:"history" env:"KNOWLEDGE_HISTORY"`
}

func NewKnowledgeConfig() *KnowledgeConfig {
	return &KnowledgeConfig{
		Backend: KnowledgeBackendFile,
	}
}

func (c *KnowledgeConfig) Validate() error {
	switch c.Backend {
	case KnowledgeBackendFile, KnowledgeBackendSqlite, KnowledgeBackendMemory:
	default:
		return errors.Wrapf(errors.ErrInvalidConfig, "unknown knowledge backend %q", c.Backend)
	}
	if c.History < 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "knowledge history must not be negative")
	}
	return nil
}
