package repository

import (
	"context"

	"apigen/internal/domain/entity"
)

// JobRepository stores generation job records.
type JobRepository interface {
	Create(ctx context.Context, job *entity.GenerationJob) error
	GetByID(ctx context.Context, id string) (*entity.GenerationJob, error)
	List(ctx context.Context) ([]*entity.GenerationJob, error)
	ListBySchema(ctx context.Context, schemaID string) ([]*entity.GenerationJob, error)
	Update(ctx context.Context, job *entity.GenerationJob) error
	CountByStatus(ctx context.Context, status entity.JobStatus) (int, error)
}
