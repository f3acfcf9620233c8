package selector

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"animebingo.dev/backend-next/internal/pkg/bgerr"
)

type S[T any] struct {
	DB bun.IDB
}

func New[T any](db bun.IDB) S[T] {
	return S[T]{
		DB: db,
	}
}

// In returns a selector running its queries on db, typically a transaction.
func (r S[T]) In(db bun.IDB) S[T] {
	return S[T]{DB: db}
}

func (r S[T]) SelectOne(ctx context.Context, fn func(q *bun.SelectQuery) *bun.SelectQuery) (*T, error) {
	var model T
	err := fn(r.DB.NewSelect().Model(&model)).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bgerr.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return &model, nil
}
