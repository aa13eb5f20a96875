package knowledge

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"slices"

	"github.com/habiliai/docstore/errors"
)

// Store persists whole graph snapshots. Save replaces the stored graph
// atomically: after a failed Save, Load still returns the previous graph.
type Store interface {
	Load(ctx context.Context) (*Graph, error)
	Save(ctx context.Context, g *Graph) error
	// Close releases resources held by the store
	Close() error
}

const snapshotVersion = 1

type snapshot struct {
	Version   int        `json:"version"`
	Entities  []*Entity  `json:"entities"`
	Relations []Relation `json:"relations"`
}

func compareRelations(a, b Relation) int {
	return cmp.Or(
		cmp.Compare(a.From, b.From),
		cmp.Compare(a.To, b.To),
		cmp.Compare(a.Kind, b.Kind),
	)
}

// encodeSnapshot renders g deterministically: entities by key, relations by
// (from, to, kind).
func encodeSnapshot(g *Graph) ([]byte, error) {
	relations := slices.Clone(g.Relations)
	slices.SortFunc(relations, compareRelations)
	if relations == nil {
		relations = []Relation{}
	}

	data, err := json.MarshalIndent(snapshot{
		Version:   snapshotVersion,
		Entities:  g.SortedEntities(),
		Relations: relations,
	}, "", "  ")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode knowledge snapshot")
	}
	return append(data, '\n'), nil
}

func decodeSnapshot(data []byte) (*Graph, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewGraph(), nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrapf(errors.ErrRepositoryState, "corrupted knowledge snapshot: %v", err)
	}
	if snap.Version != snapshotVersion {
		return nil, errors.Wrapf(errors.ErrRepositoryState, "unsupported knowledge snapshot version %d", snap.Version)
	}

	g := NewGraph()
	for _, e := range snap.Entities {
		if e == nil || e.Key == "" {
			return nil, errors.Wrapf(errors.ErrRepositoryState, "knowledge snapshot holds an entity without key")
		}
		if _, dup := g.Entities[e.Key]; dup {
			return nil, errors.Wrapf(errors.ErrRepositoryState, "knowledge snapshot holds %s twice", e.Key)
		}
		if e.Attributes == nil {
			e.Attributes = map[string]Value{}
		}
		e.Warnings = nil
		g.Entities[e.Key] = e
	}
	g.Relations = snap.Relations
	return g, nil
}
