package knowledge

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/habiliai/docstore/errors"
	"github.com/pmezard/go-difflib/difflib"
)

const (
	DefaultSimilarity   = 0.6
	DefaultRelatedDepth = 1
	DefaultPathLength   = 3
	// MaxTraversalDepth bounds Related and Paths.
	MaxTraversalDepth = 5

	maxPaths = 100
)

type (
	SimilarEntity struct {
		Key   string  `json:"key"`
		Score float64 `json:"score"`
	}

	RelatedEntity struct {
		Entity *Entity `json:"entity"`
		// Depth is the number of relations between the entity and the start.
		Depth int `json:"depth"`
	}

	// Path is a chain of relations followed in their direction.
	// Entities has one more element than Relations.
	Path struct {
		Entities  []string   `json:"entities"`
		Relations []Relation `json:"relations"`
	}
)

// similarity is the ratio of difflib's SequenceMatcher over the lowercased
// characters of a and b.
func similarity(a, b string) float64 {
	m := difflib.NewMatcher(
		strings.Split(strings.ToLower(a), ""),
		strings.Split(strings.ToLower(b), ""),
	)
	return m.Ratio()
}

func (s *service) Similar(ctx context.Context, key string, threshold float64) ([]SimilarEntity, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	if threshold == 0 {
		threshold = DefaultSimilarity
	}
	if threshold < 0 || threshold > 1 {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "threshold %v is not within (0, 1]", threshold)
	}

	out := []SimilarEntity{}
	for k := range s.graph.Load().Entities {
		if k == key {
			continue
		}
		if score := similarity(key, k); score >= threshold {
			out = append(out, SimilarEntity{Key: k, Score: score})
		}
	}
	slices.SortFunc(out, func(a, b SimilarEntity) int {
		return cmp.Or(cmp.Compare(b.Score, a.Score), cmp.Compare(a.Key, b.Key))
	})
	return out, nil
}

func boundedDepth(name string, depth, fallback int) (int, error) {
	if depth == 0 {
		return fallback, nil
	}
	if depth < 0 || depth > MaxTraversalDepth {
		return 0, errors.Wrapf(errors.ErrInvalidParams, "%s %d is not within 1..%d", name, depth, MaxTraversalDepth)
	}
	return depth, nil
}

// Related walks relations in either direction, breadth first, and returns
// every entity within depth relations of key, nearest first.
func (s *service) Related(ctx context.Context, key string, depth int) ([]RelatedEntity, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	depth, err = boundedDepth("depth", depth, DefaultRelatedDepth)
	if err != nil {
		return nil, err
	}
	g := s.graph.Load()
	if _, ok := g.Entities[key]; !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "entity %s", key)
	}

	neighbors := map[string][]string{}
	for _, r := range g.Relations {
		neighbors[r.From] = append(neighbors[r.From], r.To)
		neighbors[r.To] = append(neighbors[r.To], r.From)
	}

	distance := map[string]int{key: 0}
	frontier := []string{key}
	out := []RelatedEntity{}
	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []string
		for _, k := range frontier {
			for _, n := range neighbors[k] {
				if _, seen := distance[n]; seen {
					continue
				}
				distance[n] = d
				next = append(next, n)
			}
		}
		slices.Sort(next)
		for _, n := range next {
			if e, ok := g.Entities[n]; ok {
				out = append(out, RelatedEntity{Entity: e.clone(), Depth: d})
			}
		}
		frontier = next
	}
	return out, nil
}

// Paths returns the simple paths of at most maxLength relations from one
// entity to another. At most 100 paths are returned.
func (s *service) Paths(ctx context.Context, from, to string, maxLength int) ([]Path, error) {
	from, err := normalizeKey(from)
	if err != nil {
		return nil, err
	}
	to, err = normalizeKey(to)
	if err != nil {
		return nil, err
	}
	maxLength, err = boundedDepth("max length", maxLength, DefaultPathLength)
	if err != nil {
		return nil, err
	}
	g := s.graph.Load()
	for _, k := range []string{from, to} {
		if _, ok := g.Entities[k]; !ok {
			return nil, errors.Wrapf(errors.ErrNotFound, "entity %s", k)
		}
	}

	relations := slices.Clone(g.Relations)
	slices.SortFunc(relations, compareRelations)
	outgoing := map[string][]Relation{}
	for _, r := range relations {
		outgoing[r.From] = append(outgoing[r.From], r)
	}

	out := []Path{}
	if from == to {
		return out, nil
	}

	visited := map[string]bool{from: true}
	entities := []string{from}
	var steps []Relation
	var walk func(k string)
	walk = func(k string) {
		for _, r := range outgoing[k] {
			if len(out) >= maxPaths {
				return
			}
			if visited[r.To] {
				continue
			}
			if r.To == to {
				out = append(out, Path{
					Entities:  append(slices.Clone(entities), to),
					Relations: append(slices.Clone(steps), r),
				})
				continue
			}
			if len(steps)+1 >= maxLength {
				continue
			}
			visited[r.To] = true
			entities = append(entities, r.To)
			steps = append(steps, r)
			walk(r.To)
			entities = entities[:len(entities)-1]
			steps = steps[:len(steps)-1]
			visited[r.To] = false
		}
	}
	walk(from)
	return out, nil
}

// Snapshot returns a copy of the whole graph.
func (s *service) Snapshot(ctx context.Context) (*Graph, error) {
	return s.graph.Load().Clone(), nil
}

// SortedRelations returns relations ordered by (from, to, kind).
func (g *Graph) SortedRelations() []Relation {
	out := slices.Clone(g.Relations)
	slices.SortFunc(out, compareRelations)
	if out == nil {
		out = []Relation{}
	}
	return out
}
