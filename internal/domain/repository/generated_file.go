package repository

import (
	"context"

	"apigen/internal/domain/entity"
)

type GeneratedFileRepository interface {
	SaveFiles(ctx context.Context, files []*entity.GeneratedFile) error
	GetFilesByJobID(ctx context.Context, jobID string) ([]*entity.GeneratedFile, error)
	DeleteByJobID(ctx context.Context, jobID string) error
}
