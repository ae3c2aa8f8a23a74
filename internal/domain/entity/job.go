package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// GenerationJob records one pipeline invocation. Its ID names both the
// workspace directory and the archive file of that invocation.
type GenerationJob struct {
	ID          string    `json:"id" bson:"id"`
	SchemaID    string    `json:"schema_id" bson:"schema_id"`
	EntityName  string    `json:"entity_name" bson:"entity_name"`
	Status      JobStatus `json:"status" bson:"status"`
	Error       string    `json:"error,omitempty" bson:"error,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty" bson:"error_kind,omitempty"`
	FileCount   int       `json:"file_count" bson:"file_count"`
	ArchiveName string    `json:"archive_name,omitempty" bson:"archive_name,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

func NewGenerationJob(schema Schema) *GenerationJob {
	now := time.Now().UTC()
	return &GenerationJob{
		ID:         uuid.NewString(),
		SchemaID:   schema.ID,
		EntityName: schema.EntityName,
		Status:     JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (j *GenerationJob) UpdateStatus(status JobStatus) {
	j.Status = status
	j.UpdatedAt = time.Now().UTC()
}

// Fail marks the job failed and keeps the error text and class.
func (j *GenerationJob) Fail(err error) {
	j.UpdateStatus(JobStatusFailed)
	if err != nil {
		j.Error = err.Error()
		j.ErrorKind = ErrorKind(err)
	}
}

func (j *GenerationJob) IsFinished() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}
