package knowledge

import (
	"context"
	"time"

	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/internal/db"
	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SqliteStore keeps the graph in two tables and replaces their content in a
// single transaction per save.
type SqliteStore struct {
	db *gorm.DB
}

var _ Store = (*SqliteStore)(nil)

type SqliteEntityRecord struct {
	Key        string `gorm:"primaryKey;column:entity_key"`
	Attributes datatypes.JSONType[map[string]Value]
	Provenance datatypes.JSONType[*Provenance]
	Revisions  datatypes.JSONType[[]Revision]
	ModifiedAt time.Time
}

func (SqliteEntityRecord) TableName() string {
	return "knowledge_entities"
}

type SqliteRelationRecord struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	FromKey string `gorm:"index"`
	ToKey   string `gorm:"index"`
	Kind    string
}

func (SqliteRelationRecord) TableName() string {
	return "knowledge_relations"
}

func NewSqliteStore(path string) (*SqliteStore, error) {
	conn, err := db.OpenSqlite(path)
	if err != nil {
		return nil, err
	}

	if err := conn.AutoMigrate(&SqliteEntityRecord{}, &SqliteRelationRecord{}); err != nil {
		_ = db.CloseDB(conn)
		return nil, errors.Wrapf(err, "failed to migrate knowledge tables")
	}

	return &SqliteStore{db: conn}, nil
}

func (s *SqliteStore) Load(ctx context.Context) (*Graph, error) {
	_, tx := db.OpenSession(ctx, s.db)

	var entities []SqliteEntityRecord
	if err := tx.Order("entity_key").Find(&entities).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to load knowledge entities")
	}
	var relations []SqliteRelationRecord
	if err := tx.Order("id").Find(&relations).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to load knowledge relations")
	}

	g := NewGraph()
	for _, rec := range entities {
		attrs := rec.Attributes.Data()
		if attrs == nil {
			attrs = map[string]Value{}
		}
		g.Entities[rec.Key] = &Entity{
			Key:        rec.Key,
			Attributes: attrs,
			UpdatedAt:  rec.ModifiedAt,
			Provenance: rec.Provenance.Data(),
			Revisions:  rec.Revisions.Data(),
		}
	}
	g.Relations = lo.Map(relations, func(rec SqliteRelationRecord, _ int) Relation {
		return Relation{From: rec.FromKey, To: rec.ToKey, Kind: rec.Kind}
	})
	return g, nil
}

func (s *SqliteStore) Save(ctx context.Context, g *Graph) error {
	entities := lo.Map(g.SortedEntities(), func(e *Entity, _ int) SqliteEntityRecord {
		return SqliteEntityRecord{
			Key:        e.Key,
			Attributes: datatypes.NewJSONType(e.Attributes),
			Provenance: datatypes.NewJSONType(e.Provenance),
			Revisions:  datatypes.NewJSONType(e.Revisions),
			ModifiedAt: e.UpdatedAt,
		}
	})
	relations := lo.Map(g.Relations, func(r Relation, _ int) SqliteRelationRecord {
		return SqliteRelationRecord{FromKey: r.From, ToKey: r.To, Kind: r.Kind}
	})

	return db.Transaction(ctx, s.db, func(_ context.Context, tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&SqliteRelationRecord{}).Error; err != nil {
			return errors.Wrapf(err, "failed to clear knowledge relations")
		}
		if err := tx.Where("1 = 1").Delete(&SqliteEntityRecord{}).Error; err != nil {
			return errors.Wrapf(err, "failed to clear knowledge entities")
		}
		if len(entities) > 0 {
			if err := tx.CreateInBatches(entities, 100).Error; err != nil {
				return errors.Wrapf(err, "failed to store knowledge entities")
			}
		}
		if len(relations) > 0 {
			if err := tx.CreateInBatches(relations, 100).Error; err != nil {
				return errors.Wrapf(err, "failed to store knowledge relations")
			}
		}
		return nil
	})
}

func (s *SqliteStore) Close() error {
	return db.CloseDB(s.db)
}
