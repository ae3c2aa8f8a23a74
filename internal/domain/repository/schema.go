package repository

import (
	"context"

	"apigen/internal/domain/entity"
)

// SchemaRepository stores entity schemas. GetByID returns entity.ErrNotFound
// when no schema has the given id.
type SchemaRepository interface {
	Create(ctx context.Context, schema *entity.Schema) error
	GetByID(ctx context.Context, id string) (*entity.Schema, error)
	List(ctx context.Context) ([]*entity.Schema, error)
	Delete(ctx context.Context, id string) error
}
