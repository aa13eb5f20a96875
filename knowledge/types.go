package knowledge

import (
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

type (
	// Provenance links an entity to the document it was derived from.
	Provenance struct {
		Root string `json:"root"`
		Path string `json:"path"`
	}

	// Revision is an attribute value that an upsert replaced.
	Revision struct {
		Attribute  string    `json:"attribute"`
		Value      Value     `json:"value"`
		ReplacedAt time.Time `json:"replaced_at"`
	}

	Entity struct {
		Key        string           `json:"key"`
		Attributes map[string]Value `json:"attributes"`
		UpdatedAt  time.Time        `json:"updated_at"`
		Provenance *Provenance      `json:"provenance,omitempty"`
		Revisions  []Revision       `json:"revisions,omitempty"`

		// Warnings are computed on Get and never persisted.
		Warnings []string `json:"warnings,omitempty"`
	}

	Relation struct {
		From string `json:"from"`
		To   string `json:"to"`
		Kind string `json:"relation_type"`
	}

	// Filter selects entities by exact attribute values. Empty fields match
	// everything.
	Filter struct {
		Attributes map[string]Value `json:"attributes,omitempty"`
		KeyPrefix  string           `json:"key_prefix,omitempty"`
		// SourcePath matches entities whose provenance points at this
		// document, given relative to its root.
		SourcePath string `json:"source_path,omitempty"`
	}
)

func (p *Provenance) AbsPath() string {
	if p == nil {
		return ""
	}
	return filepath.Join(p.Root, filepath.FromSlash(p.Path))
}

func (e *Entity) clone() *Entity {
	c := *e
	c.Attributes = maps.Clone(e.Attributes)
	if e.Provenance != nil {
		p := *e.Provenance
		c.Provenance = &p
	}
	c.Revisions = slices.Clone(e.Revisions)
	c.Warnings = nil
	return &c
}

func (f Filter) Match(e *Entity) bool {
	if f.KeyPrefix != "" && !strings.HasPrefix(e.Key, f.KeyPrefix) {
		return false
	}
	if f.SourcePath != "" && (e.Provenance == nil || e.Provenance.Path != f.SourcePath) {
		return false
	}
	for name, want := range f.Attributes {
		got, ok := e.Attributes[name]
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// Graph is a complete snapshot of the knowledge graph. A Graph that has
// been published is never mutated; writers work on a Clone.
type Graph struct {
	Entities  map[string]*Entity
	Relations []Relation
}

func NewGraph() *Graph {
	return &Graph{Entities: map[string]*Entity{}}
}

func (g *Graph) Clone() *Graph {
	c := &Graph{
		Entities:  make(map[string]*Entity, len(g.Entities)),
		Relations: slices.Clone(g.Relations),
	}
	for k, e := range g.Entities {
		c.Entities[k] = e.clone()
	}
	return c
}

// SortedEntities returns entities ordered by key.
func (g *Graph) SortedEntities() []*Entity {
	keys := slices.Sorted(maps.Keys(g.Entities))
	out := make([]*Entity, 0, len(keys))
	for _, k := range keys {
		out = append(out, g.Entities[k])
	}
	return out
}

func (g *Graph) hasRelation(r Relation) bool {
	return slices.Contains(g.Relations, r)
}

func (g *Graph) removeRelations(match func(Relation) bool) int {
	before := len(g.Relations)
	g.Relations = slices.DeleteFunc(g.Relations, match)
	return before - len(g.Relations)
}
