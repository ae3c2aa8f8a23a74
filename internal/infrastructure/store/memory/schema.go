// Package memory keeps repositories in process memory. It backs the offline
// CLI and tests; data is lost on exit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"apigen/internal/domain/entity"
	"apigen/internal/domain/repository"
)

type SchemaRepo struct {
	mu      sync.RWMutex
	schemas map[string]entity.Schema
}

var _ repository.SchemaRepository = (*SchemaRepo)(nil)

func NewSchemaRepo() *SchemaRepo {
	return &SchemaRepo{schemas: make(map[string]entity.Schema)}
}

func (r *SchemaRepo) Create(_ context.Context, schema *entity.Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[schema.ID]; ok {
		return fmt.Errorf("schema %s already exists", schema.ID)
	}
	r.schemas[schema.ID] = cloneSchema(*schema)
	return nil
}

func (r *SchemaRepo) GetByID(_ context.Context, id string) (*entity.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[id]
	if !ok {
		return nil, fmt.Errorf("schema %s: %w", id, entity.ErrNotFound)
	}
	out := cloneSchema(s)
	return &out, nil
}

func (r *SchemaRepo) List(_ context.Context) ([]*entity.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.Schema, 0, len(r.schemas))
	for _, s := range r.schemas {
		c := cloneSchema(s)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *SchemaRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[id]; !ok {
		return fmt.Errorf("schema %s: %w", id, entity.ErrNotFound)
	}
	delete(r.schemas, id)
	return nil
}

func cloneSchema(s entity.Schema) entity.Schema {
	s.Fields = append([]string(nil), s.Fields...)
	if s.Endpoints != nil {
		eps := make([]*entity.Endpoint, 0, len(s.Endpoints))
		for _, e := range s.Endpoints {
			if e == nil {
				continue
			}
			c := *e
			eps = append(eps, &c)
		}
		s.Endpoints = eps
	}
	s.LinkEndpoints()
	return s
}
