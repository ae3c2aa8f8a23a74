package memory

import (
	"context"
	"sort"
	"sync"

	"apigen/internal/domain/entity"
	"apigen/internal/domain/repository"
)

type GeneratedFileRepo struct {
	mu    sync.RWMutex
	files map[string][]entity.GeneratedFile
}

var _ repository.GeneratedFileRepository = (*GeneratedFileRepo)(nil)

func NewGeneratedFileRepo() *GeneratedFileRepo {
	return &GeneratedFileRepo{files: make(map[string][]entity.GeneratedFile)}
}

func (r *GeneratedFileRepo) SaveFiles(_ context.Context, files []*entity.GeneratedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range files {
		r.files[f.JobID] = append(r.files[f.JobID], *f)
	}
	return nil
}

func (r *GeneratedFileRepo) GetFilesByJobID(_ context.Context, jobID string) ([]*entity.GeneratedFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.files[jobID]
	out := make([]*entity.GeneratedFile, len(stored))
	for i := range stored {
		f := stored[i]
		out[i] = &f
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (r *GeneratedFileRepo) DeleteByJobID(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, jobID)
	return nil
}
