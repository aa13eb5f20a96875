package knowledge_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/internal/mylog"
	"github.com/habiliai/docstore/knowledge"
	"github.com/habiliai/docstore/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() *knowledge.Graph {
	g := knowledge.NewGraph()
	g.Entities["person:ada"] = &knowledge.Entity{
		Key: "person:ada",
		Attributes: map[string]knowledge.Value{
			"name": knowledge.String("Ada Lovelace"),
			"born": knowledge.Number(1815),
			"meta": knowledge.Map(map[string]knowledge.Value{"verified": knowledge.Bool(true)}),
		},
		UpdatedAt:  fixedNow,
		Provenance: &knowledge.Provenance{Root: "/data", Path: "people/ada.md"},
		Revisions: []knowledge.Revision{
			{Attribute: "name", Value: knowledge.String("Ada"), ReplacedAt: fixedNow},
		},
	}
	g.Entities["book:notes"] = &knowledge.Entity{
		Key:        "book:notes",
		Attributes: map[string]knowledge.Value{"title": knowledge.String("Notes")},
		UpdatedAt:  fixedNow,
	}
	g.Relations = []knowledge.Relation{{From: "person:ada", To: "book:notes", Kind: "wrote"}}
	return g
}

func TestStoresRoundTrip(t *testing.T) {
	dir := t.TempDir()

	sqliteStore, err := knowledge.NewSqliteStore(filepath.Join(dir, "sqlite", "graph.db"))
	require.NoError(t, err)
	defer sqliteStore.Close()

	versioned, err := knowledge.NewVersionedStore(t.Context(), filepath.Join(dir, "versioned", "graph.json"), vcs.Author{Name: "tester", Email: "tester@example.com"}, mylog.Discard())
	require.NoError(t, err)

	stores := map[string]knowledge.Store{
		"memory":    knowledge.NewMemoryStore(),
		"file":      knowledge.NewFileStore(filepath.Join(dir, "file", "graph.json")),
		"sqlite":    sqliteStore,
		"versioned": versioned,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			empty, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, empty.Entities)

			want := sampleGraph()
			require.NoError(t, store.Save(ctx, want))

			got, err := store.Load(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("graph mismatch (-want +got):\n%s", diff)
			}

			delete(want.Entities, "book:notes")
			want.Relations = nil
			require.NoError(t, store.Save(ctx, want))

			got, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, got.Entities, 1)
			assert.Empty(t, got.Relations)
		})
	}
}

func TestVersionedStoreCommitsChangedSnapshots(t *testing.T) {
	ctx := t.Context()
	store, err := knowledge.NewVersionedStore(ctx, filepath.Join(t.TempDir(), "graph.json"), vcs.Author{Name: "tester", Email: "tester@example.com"}, mylog.Discard())
	require.NoError(t, err)

	g := sampleGraph()
	require.NoError(t, store.Save(ctx, g))
	require.NoError(t, store.Save(ctx, g))

	g.Entities["book:notes"].Attributes["title"] = knowledge.String("Sketches")
	require.NoError(t, store.Save(ctx, g))

	history, err := store.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Update knowledge graph", history[0].Message)
}

func TestFileStoreRejectsCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")

	for _, data := range []string{
		"{not json",
		`{"version": 99, "entities": [], "relations": []}`,
		`{"version": 1, "entities": [{"key": "a", "attributes": {}}, {"key": "a", "attributes": {}}], "relations": []}`,
	} {
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
		_, err := knowledge.NewFileStore(path).Load(t.Context())
		assert.ErrorIs(t, err, errors.ErrRepositoryState, data)
	}

	require.NoError(t, os.WriteFile(path, nil, 0o644))
	g, err := knowledge.NewFileStore(path).Load(t.Context())
	require.NoError(t, err)
	assert.Empty(t, g.Entities)
}
