package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"apigen/internal/domain/entity"
	"apigen/internal/domain/repository"
)

type JobRepo struct {
	mu   sync.RWMutex
	jobs map[string]entity.GenerationJob
}

var _ repository.JobRepository = (*JobRepo)(nil)

func NewJobRepo() *JobRepo {
	return &JobRepo{jobs: make(map[string]entity.GenerationJob)}
}

func (r *JobRepo) Create(_ context.Context, job *entity.GenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *JobRepo) GetByID(_ context.Context, id string) (*entity.GenerationJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, entity.ErrNotFound)
	}
	return &j, nil
}

func (r *JobRepo) List(_ context.Context) ([]*entity.GenerationJob, error) {
	return r.filter(func(entity.GenerationJob) bool { return true }), nil
}

func (r *JobRepo) ListBySchema(_ context.Context, schemaID string) ([]*entity.GenerationJob, error) {
	return r.filter(func(j entity.GenerationJob) bool { return j.SchemaID == schemaID }), nil
}

func (r *JobRepo) Update(_ context.Context, job *entity.GenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return fmt.Errorf("job %s: %w", job.ID, entity.ErrNotFound)
	}
	job.UpdatedAt = time.Now().UTC()
	r.jobs[job.ID] = *job
	return nil
}

func (r *JobRepo) CountByStatus(_ context.Context, status entity.JobStatus) (int, error) {
	return len(r.filter(func(j entity.GenerationJob) bool { return j.Status == status })), nil
}

// filter returns matching jobs, newest first.
func (r *JobRepo) filter(keep func(entity.GenerationJob) bool) []*entity.GenerationJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.GenerationJob
	for _, j := range r.jobs {
		if keep(j) {
			c := j
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.After(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	return out
}
