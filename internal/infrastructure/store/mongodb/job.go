package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"apigen/internal/domain/entity"
	"apigen/internal/domain/repository"
	"apigen/internal/infrastructure/metrics"
)

type MongoJobRepo struct {
	jobsCol *mongo.Collection
}

func NewMongoJobRepo(db *mongo.Database) repository.JobRepository {
	col := db.Collection("generation_jobs")

	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{bson.E{Key: "schema_id", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "status", Value: 1}}},
	})

	return &MongoJobRepo{
		jobsCol: col,
	}
}

func (r *MongoJobRepo) Create(ctx context.Context, job *entity.GenerationJob) error {
	metrics.IncDBOp("generation_jobs", "put")

	_, err := r.jobsCol.InsertOne(ctx, job)
	if err != nil {
		metrics.IncError("mongo_job_repo", "create_error")
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

func (r *MongoJobRepo) GetByID(ctx context.Context, id string) (*entity.GenerationJob, error) {
	metrics.IncDBOp("generation_jobs", "get")

	var job entity.GenerationJob
	err := r.jobsCol.FindOne(ctx, bson.M{"id": id}).Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("job %s: %w", id, entity.ErrNotFound)
		}
		metrics.IncError("mongo_job_repo", "get_error")
		return nil, err
	}
	return &job, nil
}

func (r *MongoJobRepo) List(ctx context.Context) ([]*entity.GenerationJob, error) {
	return r.find(ctx, bson.D{}, "list")
}

func (r *MongoJobRepo) ListBySchema(ctx context.Context, schemaID string) ([]*entity.GenerationJob, error) {
	return r.find(ctx, bson.M{"schema_id": schemaID}, "list_by_schema")
}

func (r *MongoJobRepo) find(ctx context.Context, filter interface{}, op string) ([]*entity.GenerationJob, error) {
	metrics.IncDBOp("generation_jobs", "list")

	opts := options.Find().SetSort(bson.D{bson.E{Key: "created_at", Value: -1}})
	cur, err := r.jobsCol.Find(ctx, filter, opts)
	if err != nil {
		metrics.IncError("mongo_job_repo", op+"_error")
		return nil, err
	}
	defer func() {
		err := cur.Close(ctx)
		if err != nil {
			log.Printf("close cursor err: %s", err)
		}
	}()

	var jobs []*entity.GenerationJob
	for cur.Next(ctx) {
		var j entity.GenerationJob
		if err := cur.Decode(&j); err != nil {
			metrics.IncError("mongo_job_repo", op+"_decode_error")
			return nil, err
		}
		jobs = append(jobs, &j)
	}
	if err := cur.Err(); err != nil {
		metrics.IncError("mongo_job_repo", op+"_cursor_error")
		return nil, err
	}
	return jobs, nil
}

func (r *MongoJobRepo) Update(ctx context.Context, job *entity.GenerationJob) error {
	metrics.IncDBOp("generation_jobs", "put")

	job.UpdatedAt = time.Now().UTC()
	res, err := r.jobsCol.ReplaceOne(ctx, bson.M{"id": job.ID}, job)
	if err != nil {
		metrics.IncError("mongo_job_repo", "update_error")
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("job %s: %w", job.ID, entity.ErrNotFound)
	}
	return nil
}

func (r *MongoJobRepo) CountByStatus(ctx context.Context, status entity.JobStatus) (int, error) {
	metrics.IncDBOp("generation_jobs", "count")

	count, err := r.jobsCol.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		metrics.IncError("mongo_job_repo", "count_by_status_error")
		return 0, err
	}
	return int(count), nil
}
