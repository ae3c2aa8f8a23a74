package usecase

import (
	"context"
	"fmt"

	"apigen/internal/domain/entity"
	"apigen/internal/domain/repository"
)

// JobUsecase answers questions about past generation runs.
type JobUsecase interface {
	GetJob(ctx context.Context, id string) (*entity.GenerationJob, error)
	ListJobs(ctx context.Context, schemaID string) ([]*entity.GenerationJob, error)
	GetFiles(ctx context.Context, jobID string) ([]*entity.GeneratedFile, error)
}

var _ JobUsecase = (*JobService)(nil)

type JobService struct {
	jobsRepo  repository.JobRepository
	filesRepo repository.GeneratedFileRepository
}

func NewJobService(jr repository.JobRepository, fr repository.GeneratedFileRepository) *JobService {
	return &JobService{
		jobsRepo:  jr,
		filesRepo: fr,
	}
}

func (u *JobService) GetJob(ctx context.Context, id string) (*entity.GenerationJob, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: job id is required", entity.ErrInvalidInput)
	}
	return u.jobsRepo.GetByID(ctx, id)
}

// ListJobs returns all jobs, or only those of schemaID when it is set.
func (u *JobService) ListJobs(ctx context.Context, schemaID string) ([]*entity.GenerationJob, error) {
	if schemaID != "" {
		return u.jobsRepo.ListBySchema(ctx, schemaID)
	}
	return u.jobsRepo.List(ctx)
}

func (u *JobService) GetFiles(ctx context.Context, jobID string) ([]*entity.GeneratedFile, error) {
	if _, err := u.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	files, err := u.filesRepo.GetFilesByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get files for job %s: %w", jobID, err)
	}
	return files, nil
}
