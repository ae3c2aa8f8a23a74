package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"apigen/internal/domain/entity"
	"apigen/internal/domain/repository"
	"apigen/internal/infrastructure/archive"
	"apigen/internal/infrastructure/events"
	"apigen/internal/infrastructure/llm"
	"apigen/internal/infrastructure/metrics"
	"apigen/internal/infrastructure/store/filesystem"
)

type Archiver interface {
	Archive(ctx context.Context, srcDir, outPath string) (archive.Result, error)
}

type LayoutResolver interface {
	Resolve(entityName string) (entity.FileLayout, error)
}

type EventPublisher interface {
	Publish(e events.Event)
}

// ScaffoldGenerator runs the generation pipeline for one schema at a time:
// prompt, upstream call, parse, workspace, archive, cleanup. Each call gets
// its own job ID, workspace and archive path, so calls may run concurrently.
type ScaffoldGenerator struct {
	schemas    repository.SchemaRepository
	jobs       repository.JobRepository
	files      repository.GeneratedFileRepository
	llm        repository.LLMGenerator
	workspaces *filesystem.WorkspaceRepository
	archiver   Archiver
	layout     LayoutResolver
	events     EventPublisher

	logger  *slog.Logger
	timeout time.Duration
}

func NewScaffoldGenerator(
	sr repository.SchemaRepository,
	jr repository.JobRepository,
	fr repository.GeneratedFileRepository,
	gen repository.LLMGenerator,
	workspaces *filesystem.WorkspaceRepository,
	archiver Archiver,
	layout LayoutResolver,
	publisher EventPublisher,
	logger *slog.Logger,
	timeout time.Duration,
) *ScaffoldGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScaffoldGenerator{
		schemas:    sr,
		jobs:       jr,
		files:      fr,
		llm:        gen,
		workspaces: workspaces,
		archiver:   archiver,
		layout:     layout,
		events:     publisher,
		logger:     logger,
		timeout:    timeout,
	}
}

// Generate loads a stored schema and runs the pipeline for it.
func (s *ScaffoldGenerator) Generate(ctx context.Context, schemaID string) (*entity.Artifact, error) {
	schema, err := s.schemas.GetByID(ctx, schemaID)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return s.GenerateForSchema(ctx, *schema)
}

// GenerateForSchema runs the pipeline and returns the archive. The caller
// owns Artifact.Path afterwards. On error nothing is left on disk.
func (s *ScaffoldGenerator) GenerateForSchema(ctx context.Context, schema entity.Schema) (*entity.Artifact, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	job := entity.NewGenerationJob(schema)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	metrics.IncJobsCreated()
	logger := s.logger.With("job_id", job.ID, "schema_id", schema.ID, "entity", schema.EntityName)

	s.setStatus(ctx, job, entity.JobStatusRunning, nil)
	metrics.IncActiveJobs()
	defer metrics.DecActiveJobs()

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	startTime := time.Now()
	logger.Info("start generation job")

	artifact, err := s.run(runCtx, job, schema, logger)
	if err != nil {
		s.setStatus(ctx, job, entity.JobStatusFailed, err)
		metrics.ObserveJobDuration(string(entity.JobStatusFailed), time.Since(startTime))
		metrics.IncError("pipeline", entity.ErrorKind(err))
		s.publish(job, events.StageFailed, err.Error())
		logger.Error("generation job failed", "kind", entity.ErrorKind(err), "err", err)
		return nil, err
	}

	job.FileCount = artifact.Entries
	job.ArchiveName = artifact.FileName
	s.setStatus(ctx, job, entity.JobStatusSucceeded, nil)
	metrics.ObserveJobDuration(string(entity.JobStatusSucceeded), time.Since(startTime))
	s.publish(job, events.StageSucceeded, artifact.FileName)
	logger.Info("generation job finished", "files", artifact.Entries, "bytes", artifact.Size, "duration", time.Since(startTime))
	return artifact, nil
}

func (s *ScaffoldGenerator) run(ctx context.Context, job *entity.GenerationJob, schema entity.Schema, logger *slog.Logger) (*entity.Artifact, error) {
	s.publish(job, events.StageStarted, "")

	// 1) Generate via LLM
	prompt := entity.ComposePrompt(schema)
	raw, err := s.llm.Generate(ctx, prompt.Text)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	s.publish(job, events.StageGenerated, fmt.Sprintf("%d bytes", len(raw)))

	// 2) Parse sections
	sections, err := llm.ParseSections(raw)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	s.publish(job, events.StageParsed, fmt.Sprintf("%d sections", len(sections)))
	logger.Debug("parsed sections", "count", len(sections))

	layout, err := s.layout.Resolve(schema.EntityName)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve layout: %w", entity.ErrFilesystem, err)
	}

	// 3) Materialize into a private workspace, removed on every exit path
	ws, err := s.workspaces.Create(job.ID)
	if err != nil {
		return nil, err
	}
	defer ws.Remove()

	files, err := ws.WriteSections(sections, layout)
	if err != nil {
		return nil, err
	}
	if s.files != nil {
		if err := s.files.SaveFiles(ctx, files); err != nil {
			logger.Error("save generated files failed", "err", err)
		}
	}
	s.publish(job, events.StageMaterialized, fmt.Sprintf("%d files", len(files)))

	// 4) Archive
	outPath := s.workspaces.ArchivePath(job.ID)
	res, err := s.archiver.Archive(ctx, ws.Root, outPath)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	s.publish(job, events.StageArchived, fmt.Sprintf("%d bytes", res.Size))

	return &entity.Artifact{
		JobID:    job.ID,
		FileName: entity.ArchiveFileName(schema.EntityName),
		Path:     outPath,
		Size:     res.Size,
		Entries:  res.Entries,
	}, nil
}

// setStatus persists a transition. The caller's context may already be done
// when a job fails, so the write gets its own short deadline.
func (s *ScaffoldGenerator) setStatus(ctx context.Context, job *entity.GenerationJob, status entity.JobStatus, cause error) {
	from := job.Status
	if status == entity.JobStatusFailed {
		job.Fail(cause)
	} else {
		job.UpdateStatus(status)
	}
	metrics.IncJobStatusChange(string(from), string(status))

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.jobs.Update(writeCtx, job); err != nil {
		s.logger.Warn("failed to update job status", "job_id", job.ID, "status", status, "err", err)
	}
}

func (s *ScaffoldGenerator) publish(job *entity.GenerationJob, stage events.Stage, detail string) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.Event{
		JobID:    job.ID,
		SchemaID: job.SchemaID,
		Stage:    stage,
		Detail:   detail,
	})
}
