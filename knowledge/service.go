package knowledge

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/habiliai/docstore/coordinator"
	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/sandbox"
)

const userKeyPrefix = "user:"

// DocumentLookup reports whether a committed document exists at an absolute
// path.
type DocumentLookup interface {
	Exists(ctx context.Context, path string) (bool, error)
}

type Service interface {
	// Upsert creates the entity or merges attrs into it, attribute by
	// attribute. Changing the kind of an existing attribute fails with
	// ErrTypeConflict and leaves the entity untouched.
	Upsert(ctx context.Context, key string, attrs map[string]Value, opts ...UpsertOption) (*Entity, error)
	// CheckUpsert reports the error Upsert would fail with against the
	// current graph, without changing it. Callers holding the graph lock
	// can rely on the answer until they release it.
	CheckUpsert(ctx context.Context, key string, attrs map[string]Value, opts ...UpsertOption) error
	Get(ctx context.Context, key string) (*Entity, error)
	Query(ctx context.Context, filter Filter) ([]*Entity, error)
	Search(ctx context.Context, text string) ([]*Entity, error)
	Delete(ctx context.Context, key string) (bool, error)

	Relate(ctx context.Context, from, to, kind string) error
	Unrelate(ctx context.Context, from, to, kind string) (bool, error)
	Relations(ctx context.Context, key string) ([]Relation, error)

	// Similar ranks other entity keys by their similarity to key. A zero
	// threshold means DefaultSimilarity.
	Similar(ctx context.Context, key string, threshold float64) ([]SimilarEntity, error)
	Related(ctx context.Context, key string, depth int) ([]RelatedEntity, error)
	Paths(ctx context.Context, from, to string, maxLength int) ([]Path, error)
	Snapshot(ctx context.Context) (*Graph, error)

	SetPreferences(ctx context.Context, userID string, prefs map[string]Value) (*Entity, error)
	GetPreferences(ctx context.Context, userID string) (map[string]Value, error)
}

type service struct {
	store   Store
	coord   *coordinator.Coordinator
	lockKey string

	sandbox *sandbox.Sandbox
	docs    DocumentLookup
	history int
	now     func() time.Time
	logger  *slog.Logger

	// graph is the last persisted snapshot. It is replaced, never mutated.
	graph atomic.Pointer[Graph]
}

var _ Service = (*service)(nil)

type Option func(*service)

// WithSandbox enables provenance links; their paths are resolved through sb.
func WithSandbox(sb *sandbox.Sandbox) Option {
	return func(s *service) {
		s.sandbox = sb
	}
}

// WithDocuments enables dangling provenance warnings on Get.
func WithDocuments(docs DocumentLookup) Option {
	return func(s *service) {
		s.docs = docs
	}
}

// WithHistory keeps up to n replaced values per entity.
func WithHistory(n int) Option {
	return func(s *service) {
		s.history = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// NewService loads the graph from store. lockKey names the graph in coord;
// mutations hold it while they persist.
func NewService(ctx context.Context, store Store, coord *coordinator.Coordinator, lockKey string, opts ...Option) (Service, error) {
	s := &service{
		store:   store,
		coord:   coord,
		lockKey: lockKey,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	g, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.graph.Store(g)
	return s, nil
}

type UpsertOption func(*upsertOptions)

type upsertOptions struct {
	provenance string
}

// WithProvenance links the entity to the document at path.
func WithProvenance(path string) UpsertOption {
	return func(o *upsertOptions) {
		o.provenance = path
	}
}

// mutate runs fn on a copy of the graph under the graph lock, persists the
// copy and publishes it. Nothing is persisted when fn reports no change.
func (s *service) mutate(ctx context.Context, fn func(g *Graph) (bool, error)) error {
	ctx, release, err := s.coord.Acquire(ctx, s.lockKey)
	if err != nil {
		return err
	}
	defer release()

	next := s.graph.Load().Clone()
	changed, err := fn(next)
	if err != nil || !changed {
		return err
	}
	if err := s.store.Save(ctx, next); err != nil {
		return errors.Wrapf(err, "failed to persist knowledge graph")
	}
	s.graph.Store(next)
	return nil
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.Wrapf(errors.ErrInvalidParams, "entity key is empty")
	}
	return key, nil
}

func (s *service) resolveProvenance(path string) (*Provenance, error) {
	if path == "" {
		return nil, nil
	}
	if s.sandbox == nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "provenance links need a sandbox")
	}
	resolved, err := s.sandbox.Resolve(path)
	if err != nil {
		return nil, err
	}
	if resolved.IsRoot() {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "provenance %q names a storage root, not a document", path)
	}
	return &Provenance{Root: resolved.Root, Path: resolved.Rel}, nil
}

// prepareUpsert validates the arguments of an upsert and resolves its
// provenance.
func (s *service) prepareUpsert(key string, attrs map[string]Value, opts []UpsertOption) (string, *Provenance, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return "", nil, err
	}
	for name, v := range attrs {
		if name == "" {
			return "", nil, errors.Wrapf(errors.ErrInvalidParams, "attribute name is empty")
		}
		if !v.IsValid() {
			return "", nil, errors.Wrapf(errors.ErrInvalidParams, "attribute %s has no value", name)
		}
	}

	o := &upsertOptions{}
	for _, opt := range opts {
		opt(o)
	}
	provenance, err := s.resolveProvenance(o.provenance)
	if err != nil {
		return "", nil, err
	}
	return key, provenance, nil
}

func checkAttributes(e *Entity, attrs map[string]Value) error {
	if e == nil {
		return nil
	}
	for _, name := range slices.Sorted(maps.Keys(attrs)) {
		if prev, exists := e.Attributes[name]; exists {
			if err := checkCompatible(name, prev, attrs[name]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *service) CheckUpsert(ctx context.Context, key string, attrs map[string]Value, opts ...UpsertOption) error {
	key, _, err := s.prepareUpsert(key, attrs, opts)
	if err != nil {
		return err
	}
	return checkAttributes(s.graph.Load().Entities[key], attrs)
}

func (s *service) Upsert(ctx context.Context, key string, attrs map[string]Value, opts ...UpsertOption) (*Entity, error) {
	key, provenance, err := s.prepareUpsert(key, attrs, opts)
	if err != nil {
		return nil, err
	}

	var result *Entity
	err = s.mutate(ctx, func(g *Graph) (bool, error) {
		now := s.now()
		e, ok := g.Entities[key]
		if err := checkAttributes(e, attrs); err != nil {
			return false, err
		}
		if !ok {
			e = &Entity{Key: key, Attributes: map[string]Value{}}
		}

		for _, name := range slices.Sorted(maps.Keys(attrs)) {
			prev, exists := e.Attributes[name]
			if exists && s.history > 0 && !prev.Equal(attrs[name]) {
				e.Revisions = append(e.Revisions, Revision{Attribute: name, Value: prev, ReplacedAt: now})
			}
			e.Attributes[name] = attrs[name]
		}
		if extra := len(e.Revisions) - s.history; extra > 0 {
			e.Revisions = slices.Clone(e.Revisions[extra:])
		}
		if provenance != nil {
			e.Provenance = provenance
		}
		e.UpdatedAt = now

		g.Entities[key] = e
		result = e.clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("entity upserted", "key", key, "attributes", len(attrs))
	return result, nil
}

func (s *service) Get(ctx context.Context, key string) (*Entity, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	e, ok := s.graph.Load().Entities[key]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "entity %s", key)
	}

	out := e.clone()
	if warning := s.checkProvenance(ctx, out); warning != "" {
		out.Warnings = append(out.Warnings, warning)
		s.logger.Warn("dangling provenance", "key", key, "path", out.Provenance.AbsPath())
	}
	return out, nil
}

func (s *service) checkProvenance(ctx context.Context, e *Entity) string {
	if e.Provenance == nil || s.docs == nil {
		return ""
	}
	exists, err := s.docs.Exists(ctx, e.Provenance.AbsPath())
	switch {
	case err != nil && errors.Is(err, errors.ErrOutOfBounds):
		return "provenance " + e.Provenance.AbsPath() + " is outside every storage root"
	case err != nil:
		return "provenance " + e.Provenance.AbsPath() + " could not be checked: " + err.Error()
	case !exists:
		return "provenance " + e.Provenance.AbsPath() + " no longer exists"
	default:
		return ""
	}
}

func (s *service) Query(ctx context.Context, filter Filter) ([]*Entity, error) {
	var out []*Entity
	for _, e := range s.graph.Load().SortedEntities() {
		if filter.Match(e) {
			out = append(out, e.clone())
		}
	}
	return out, nil
}

func (s *service) Search(ctx context.Context, text string) ([]*Entity, error) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "search text is empty")
	}

	var out []*Entity
	for _, e := range s.graph.Load().SortedEntities() {
		if strings.Contains(strings.ToLower(e.Key), needle) || containsText(e.Attributes, needle) {
			out = append(out, e.clone())
		}
	}
	return out, nil
}

func containsText(attrs map[string]Value, needle string) bool {
	for name, v := range attrs {
		if strings.Contains(strings.ToLower(name), needle) {
			return true
		}
		if str, ok := v.AsString(); ok && strings.Contains(strings.ToLower(str), needle) {
			return true
		}
		if m, ok := v.AsMap(); ok && containsText(m, needle) {
			return true
		}
	}
	return false
}

func (s *service) Delete(ctx context.Context, key string) (bool, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return false, err
	}

	var deleted bool
	err = s.mutate(ctx, func(g *Graph) (bool, error) {
		if _, ok := g.Entities[key]; !ok {
			return false, nil
		}
		delete(g.Entities, key)
		g.removeRelations(func(r Relation) bool {
			return r.From == key || r.To == key
		})
		deleted = true
		return true, nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("entity deleted", "key", key)
	}
	return deleted, nil
}

func (s *service) Relate(ctx context.Context, from, to, kind string) error {
	rel, err := newRelation(from, to, kind)
	if err != nil {
		return err
	}

	return s.mutate(ctx, func(g *Graph) (bool, error) {
		for _, key := range []string{rel.From, rel.To} {
			if _, ok := g.Entities[key]; !ok {
				return false, errors.Wrapf(errors.ErrNotFound, "entity %s", key)
			}
		}
		if g.hasRelation(rel) {
			return false, nil
		}
		g.Relations = append(g.Relations, rel)
		return true, nil
	})
}

func (s *service) Unrelate(ctx context.Context, from, to, kind string) (bool, error) {
	rel, err := newRelation(from, to, kind)
	if err != nil {
		return false, err
	}

	var removed bool
	err = s.mutate(ctx, func(g *Graph) (bool, error) {
		removed = g.removeRelations(func(r Relation) bool {
			return r == rel
		}) > 0
		return removed, nil
	})
	return removed, err
}

func newRelation(from, to, kind string) (Relation, error) {
	from, err := normalizeKey(from)
	if err != nil {
		return Relation{}, err
	}
	to, err = normalizeKey(to)
	if err != nil {
		return Relation{}, err
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return Relation{}, errors.Wrapf(errors.ErrInvalidParams, "relation type is empty")
	}
	return Relation{From: from, To: to, Kind: kind}, nil
}

func (s *service) Relations(ctx context.Context, key string) ([]Relation, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	g := s.graph.Load()
	if _, ok := g.Entities[key]; !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "entity %s", key)
	}

	out := []Relation{}
	for _, r := range g.Relations {
		if r.From == key || r.To == key {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, compareRelations)
	return out, nil
}

func userKey(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.ContainsAny(userID, `/\`) || strings.Contains(userID, "..") {
		return "", errors.Wrapf(errors.ErrInvalidParams, "invalid user id %q", userID)
	}
	return userKeyPrefix + userID, nil
}

func (s *service) SetPreferences(ctx context.Context, userID string, prefs map[string]Value) (*Entity, error) {
	key, err := userKey(userID)
	if err != nil {
		return nil, err
	}
	return s.Upsert(ctx, key, prefs)
}

func (s *service) GetPreferences(ctx context.Context, userID string) (map[string]Value, error) {
	key, err := userKey(userID)
	if err != nil {
		return nil, err
	}
	e, ok := s.graph.Load().Entities[key]
	if !ok {
		return map[string]Value{}, nil
	}
	return maps.Clone(e.Attributes), nil
}
