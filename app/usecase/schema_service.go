package usecase

import (
	"context"
	"fmt"

	"apigen/internal/domain/entity"
	"apigen/internal/domain/repository"
)

type SchemaUsecase interface {
	CreateSchema(ctx context.Context, in CreateSchemaInput) (*entity.Schema, error)
	GetSchema(ctx context.Context, id string) (*entity.Schema, error)
	ListSchemas(ctx context.Context) ([]*entity.Schema, error)
	DeleteSchema(ctx context.Context, id string) error
}

type CreateSchemaInput struct {
	EntityName string
	BasePath   string
	Fields     []string
	Endpoints  []entity.Endpoint
}

var _ SchemaUsecase = (*SchemaService)(nil)

type SchemaService struct {
	schemas repository.SchemaRepository
}

func NewSchemaService(sr repository.SchemaRepository) *SchemaService {
	return &SchemaService{schemas: sr}
}

func (u *SchemaService) CreateSchema(ctx context.Context, in CreateSchemaInput) (*entity.Schema, error) {
	schema := entity.NewSchema(in.EntityName, in.BasePath, in.Fields)
	for i := range in.Endpoints {
		ep := in.Endpoints[i]
		schema.AddEndpoint(&ep)
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	if err := u.schemas.Create(ctx, schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return schema, nil
}

func (u *SchemaService) GetSchema(ctx context.Context, id string) (*entity.Schema, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", entity.ErrInvalidInput)
	}
	return u.schemas.GetByID(ctx, id)
}

func (u *SchemaService) ListSchemas(ctx context.Context) ([]*entity.Schema, error) {
	schemas, err := u.schemas.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return schemas, nil
}

func (u *SchemaService) DeleteSchema(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", entity.ErrInvalidInput)
	}
	return u.schemas.Delete(ctx, id)
}
