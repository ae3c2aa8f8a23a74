package mongodb

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"apigen/internal/domain/entity"
	"apigen/internal/domain/repository"
	"apigen/internal/infrastructure/metrics"
)

type MongoGeneratedFileRepo struct {
	col *mongo.Collection
}

func NewMongoGeneratedFileRepo(db *mongo.Database) repository.GeneratedFileRepository {
	col := db.Collection("generated_files")

	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "job_id", Value: 1}}},
	})

	return &MongoGeneratedFileRepo{
		col: col,
	}
}

func (r *MongoGeneratedFileRepo) SaveFiles(ctx context.Context, files []*entity.GeneratedFile) error {
	if len(files) == 0 {
		return nil
	}

	metrics.IncDBOp("generated_files", "put")

	docs := make([]interface{}, len(files))
	for i, f := range files {
		docs[i] = f
	}

	_, err := r.col.InsertMany(ctx, docs)
	if err != nil {
		metrics.IncError("mongo_file_repo", "save_error")
		return err
	}
	return nil
}

func (r *MongoGeneratedFileRepo) GetFilesByJobID(ctx context.Context, jobID string) ([]*entity.GeneratedFile, error) {
	metrics.IncDBOp("generated_files", "get")

	opts := options.Find().SetSort(bson.D{bson.E{Key: "path", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"job_id": jobID}, opts)
	if err != nil {
		metrics.IncError("mongo_file_repo", "get_by_jobid_error")
		return nil, err
	}
	defer func() {
		err := cur.Close(ctx)
		if err != nil {
			log.Printf("close cursor err: %s", err)
		}
	}()

	var result []*entity.GeneratedFile
	for cur.Next(ctx) {
		var doc entity.GeneratedFile
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, &doc)
	}
	return result, cur.Err()
}

func (r *MongoGeneratedFileRepo) DeleteByJobID(ctx context.Context, jobID string) error {
	metrics.IncDBOp("generated_files", "delete")

	_, err := r.col.DeleteMany(ctx, bson.M{"job_id": jobID})
	if err != nil {
		metrics.IncError("mongo_file_repo", "delete_error")
		return err
	}
	return nil
}
