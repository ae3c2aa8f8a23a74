package entity

import (
	"strings"
	"time"
)

// GeneratedFile is one materialized section of a job.
type GeneratedFile struct {
	JobID     string    `json:"job_id" bson:"job_id"`
	Section   SectionID `json:"section" bson:"section"`
	Path      string    `json:"path" bson:"path"`
	Content   string    `json:"content" bson:"content"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Artifact is the archive handed to the caller. The pipeline forgets about it
// once returned; whoever receives it removes Path when done.
type Artifact struct {
	JobID    string `json:"job_id"`
	FileName string `json:"file_name"`
	Path     string `json:"-"`
	Size     int64  `json:"size"`
	Entries  int    `json:"entries"`
}

// ArchiveFileName is the download name suggested for an entity's archive.
func ArchiveFileName(entityName string) string {
	return strings.ToLower(entityName) + "-api.zip"
}
