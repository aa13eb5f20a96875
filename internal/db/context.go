package db

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	sessionCtxKey = uuid.New()
)

// OpenSession returns the session already carried by ctx, or starts one.
func OpenSession(ctx context.Context, db *gorm.DB) (context.Context, *gorm.DB) {
	tx, ok := ctx.Value(sessionCtxKey).(*gorm.DB)
	if ok {
		return ctx, tx
	}

	return WithSession(ctx, db)
}

func WithSession(ctx context.Context, db *gorm.DB) (context.Context, *gorm.DB) {
	tx := db.WithContext(ctx)
	return context.WithValue(ctx, sessionCtxKey, tx), tx
}

// Transaction runs fn in a transaction whose session is carried by the
// context passed to fn. A transaction already in ctx is joined.
func Transaction(ctx context.Context, db *gorm.DB, fn func(ctx context.Context, tx *gorm.DB) error) error {
	if tx, ok := ctx.Value(sessionCtxKey).(*gorm.DB); ok {
		return fn(ctx, tx)
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, sessionCtxKey, tx), tx)
	})
}
