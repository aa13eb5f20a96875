package tool

import (
	"context"

	"github.com/habiliai/docstore/knowledge"
)

type (
	EntityResponse struct {
		Entity *knowledge.Entity `json:"entity" jsonschema:"description=Entity with its attributes and provenance and warnings"`
	}

	EntitiesResponse struct {
		Entities []*knowledge.Entity `json:"entities"`
	}

	RelationsResponse struct {
		Relations []knowledge.Relation `json:"relations" jsonschema:"description=Relations in which the entity is either end"`
	}

	PreferencesResponse struct {
		Preferences map[string]any `json:"preferences"`
	}
)

func plainAttributes(attrs map[string]knowledge.Value) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v.Any()
	}
	return out
}

func entities(list []*knowledge.Entity) *EntitiesResponse {
	if list == nil {
		list = []*knowledge.Entity{}
	}
	return &EntitiesResponse{Entities: list}
}

func (c *Catalog) registerKnowledgeTools() error {
	graph := c.backend.Knowledge()

	if err := register(c, "upsert_entity",
		`Create an entity or merge attributes into it. Existing attributes not named keep their values. An attribute cannot change type (string, number, boolean or object).`,
		func(ctx context.Context, req struct {
			Key        string         `json:"key" jsonschema:"required,description=Entity key (e.g. person:ada)"`
			Attributes map[string]any `json:"attributes" jsonschema:"required,description=Attributes to set. Values are strings or numbers or booleans or objects of those"`
			SourcePath string         `json:"source_path,omitempty" jsonschema:"description=Document this entity was derived from"`
		}) (*EntityResponse, error) {
			attrs, err := knowledge.Attributes(req.Attributes)
			if err != nil {
				return nil, err
			}
			var opts []knowledge.UpsertOption
			if req.SourcePath != "" {
				opts = append(opts, knowledge.WithProvenance(req.SourcePath))
			}
			e, err := graph.Upsert(ctx, req.Key, attrs, opts...)
			if err != nil {
				return nil, err
			}
			return &EntityResponse{Entity: e}, nil
		},
	); err != nil {
		return err
	}

	if err := register(c, "get_entity",
		`Get an entity by key. Warnings report a source document that no longer exists.`,
		func(ctx context.Context, req struct {
			Key string `json:"key" jsonschema:"required,description=Entity key"`
		}) (*EntityResponse, error) {
			e, err := graph.Get(ctx, req.Key)
			if err != nil {
				return nil, err
			}
			return &EntityResponse{Entity: e}, nil
		},
	); err != nil {
		return err
	}

	if err := register(c, "query_entities",
		`List entities matching every given condition, ordered by key.`,
		func(ctx context.Context, req struct {
			Attributes map[string]any `json:"attributes,omitempty" jsonschema:"description=Attributes that must be equal"`
			KeyPrefix  string         `json:"key_prefix,omitempty" jsonschema:"description=Keys must start with this prefix (e.g. person:)"`
			SourcePath string         `json:"source_path,omitempty" jsonschema:"description=Entities derived from this document (relative to its root)"`
		}) (*EntitiesResponse, error) {
			attrs, err := knowledge.Attributes(req.Attributes)
			if err != nil {
				return nil, err
			}
			list, err := graph.Query(ctx, knowledge.Filter{Attributes: attrs, KeyPrefix: req.KeyPrefix, SourcePath: req.SourcePath})
			if err != nil {
				return nil, err
			}
			return entities(list), nil
		},
	); err != nil {
		return err
	}

	if err := register(c, "search_entities",
		`Case-insensitive text search over entity keys, attribute names and string values.`,
		func(ctx context.Context, req struct {
			Text string `json:"text" jsonschema:"required,description=Text to look for"`
		}) (*EntitiesResponse, error) {
			list, err := graph.Search(ctx, req.Text)
			if err != nil {
				return nil, err
			}
			return entities(list), nil
		},
	); err != nil {
		return err
	}

	if err := register(c, "delete_entity",
		`Delete an entity and every relation it takes part in.`,
		func(ctx context.Context, req struct {
			Key string `json:"key" jsonschema:"required,description=Entity key"`
		}) (resp struct {
			Deleted bool `json:"deleted" jsonschema:"description=False when no such entity existed"`
		}, err error) {
			resp.Deleted, err = graph.Delete(ctx, req.Key)
			return
		},
	); err != nil {
		return err
	}

	if err := register(c, "relate_entities",
		`Add a typed, directed relation between two existing entities. Adding an existing relation changes nothing.`,
		func(ctx context.Context, req struct {
			From         string `json:"from" jsonschema:"required,description=Source entity key"`
			To           string `json:"to" jsonschema:"required,description=Target entity key"`
			RelationType string `json:"relation_type" jsonschema:"required,description=Relation type in active voice (e.g. wrote)"`
		}) (*RelationsResponse, error) {
			if err := graph.Relate(ctx, req.From, req.To, req.RelationType); err != nil {
				return nil, err
			}
			rels, err := graph.Relations(ctx, req.From)
			if err != nil {
				return nil, err
			}
			return &RelationsResponse{Relations: rels}, nil
		},
	); err != nil {
		return err
	}

	if err := register(c, "unrelate_entities",
		`Remove a relation between two entities.`,
		func(ctx context.Context, req struct {
			From         string `json:"from" jsonschema:"required,description=Source entity key"`
			To           string `json:"to" jsonschema:"required,description=Target entity key"`
			RelationType string `json:"relation_type" jsonschema:"required,description=Relation type"`
		}) (resp struct {
			Removed bool `json:"removed" jsonschema:"description=False when no such relation existed"`
		}, err error) {
			resp.Removed, err = graph.Unrelate(ctx, req.From, req.To, req.RelationType)
			return
		},
	); err != nil {
		return err
	}

	if err := register(c, "entity_relations",
		`List the relations an entity takes part in.`,
		func(ctx context.Context, req struct {
			Key string `json:"key" jsonschema:"required,description=Entity key"`
		}) (*RelationsResponse, error) {
			rels, err := graph.Relations(ctx, req.Key)
			if err != nil {
				return nil, err
			}
			return &RelationsResponse{Relations: rels}, nil
		},
	); err != nil {
		return err
	}

	if err := register(c, "similar_entities",
		`Find entities whose keys are spelled like the given key. Useful before creating an entity that may already exist under another spelling.`,
		func(ctx context.Context, req struct {
			Key       string  `json:"key" jsonschema:"required,description=Key to compare against"`
			Threshold float64 `json:"threshold,omitempty" jsonschema:"minimum=0,maximum=1,description=Minimum similarity between 0 and 1. Defaults to 0.6"`
		}) (resp struct {
			Entities []knowledge.SimilarEntity `json:"entities" jsonschema:"description=Similar keys with their scores. Most similar first"`
		}, err error) {
			resp.Entities, err = graph.Similar(ctx, req.Key, req.Threshold)
			return
		},
	); err != nil {
		return err
	}

	if err := register(c, "related_entities",
		`List the entities reachable from an entity through relations in either direction. Nearest first.`,
		func(ctx context.Context, req struct {
			Key   string `json:"key" jsonschema:"required,description=Entity to start from"`
			Depth int    `json:"depth,omitempty" jsonschema:"minimum=0,maximum=5,description=Maximum number of relations to follow. Defaults to 1"`
		}) (resp struct {
			Entities []knowledge.RelatedEntity `json:"entities"`
		}, err error) {
			resp.Entities, err = graph.Related(ctx, req.Key, req.Depth)
			return
		},
	); err != nil {
		return err
	}

	if err := register(c, "find_paths",
		`Find chains of relations leading from one entity to another. Relations are followed in their direction.`,
		func(ctx context.Context, req struct {
			From      string `json:"from" jsonschema:"required,description=Start entity key"`
			To        string `json:"to" jsonschema:"required,description=End entity key"`
			MaxLength int    `json:"max_length,omitempty" jsonschema:"minimum=0,maximum=5,description=Maximum number of relations per path. Defaults to 3"`
		}) (resp struct {
			Paths []knowledge.Path `json:"paths" jsonschema:"description=At most 100 paths"`
		}, err error) {
			resp.Paths, err = graph.Paths(ctx, req.From, req.To, req.MaxLength)
			return
		},
	); err != nil {
		return err
	}

	if err := register(c, "read_graph",
		`Return every entity and relation of the knowledge graph.`,
		func(ctx context.Context, req struct{}) (resp struct {
			Entities  []*knowledge.Entity  `json:"entities"`
			Relations []knowledge.Relation `json:"relations"`
		}, err error) {
			var g *knowledge.Graph
			if g, err = graph.Snapshot(ctx); err != nil {
				return
			}
			resp.Entities = entities(g.SortedEntities()).Entities
			resp.Relations = g.SortedRelations()
			return
		},
	); err != nil {
		return err
	}

	if err := register(c, "set_preferences",
		`Merge preferences into a user's preference set.`,
		func(ctx context.Context, req struct {
			UserID      string         `json:"user_id" jsonschema:"required,description=User identifier without path separators"`
			Preferences map[string]any `json:"preferences" jsonschema:"required,description=Preferences to set (e.g. theme=dark)"`
		}) (*PreferencesResponse, error) {
			prefs, err := knowledge.Attributes(req.Preferences)
			if err != nil {
				return nil, err
			}
			e, err := graph.SetPreferences(ctx, req.UserID, prefs)
			if err != nil {
				return nil, err
			}
			return &PreferencesResponse{Preferences: plainAttributes(e.Attributes)}, nil
		},
	); err != nil {
		return err
	}

	return register(c, "get_preferences",
		`Get a user's preferences. Unknown users have none.`,
		func(ctx context.Context, req struct {
			UserID string `json:"user_id" jsonschema:"required,description=User identifier"`
		}) (*PreferencesResponse, error) {
			prefs, err := graph.GetPreferences(ctx, req.UserID)
			if err != nil {
				return nil, err
			}
			return &PreferencesResponse{Preferences: plainAttributes(prefs)}, nil
		},
	)
}
