package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"apigen/internal/domain/entity"
	"apigen/internal/domain/repository"
	"apigen/internal/infrastructure/metrics"
)

type MongoSchemaRepo struct {
	col *mongo.Collection
}

func NewMongoSchemaRepo(db *mongo.Database) repository.SchemaRepository {
	col := db.Collection("schemas")

	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{bson.E{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoSchemaRepo{col: col}
}

func (r *MongoSchemaRepo) Create(ctx context.Context, schema *entity.Schema) error {
	metrics.IncDBOp("schemas", "put")

	if _, err := r.col.InsertOne(ctx, schema); err != nil {
		metrics.IncError("mongo_schema_repo", "create_error")
		return fmt.Errorf("insert schema %s: %w", schema.ID, err)
	}
	return nil
}

func (r *MongoSchemaRepo) GetByID(ctx context.Context, id string) (*entity.Schema, error) {
	metrics.IncDBOp("schemas", "get")

	var s entity.Schema
	if err := r.col.FindOne(ctx, bson.M{"id": id}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("schema %s: %w", id, entity.ErrNotFound)
		}
		metrics.IncError("mongo_schema_repo", "get_error")
		return nil, err
	}
	s.LinkEndpoints()
	return &s, nil
}

func (r *MongoSchemaRepo) List(ctx context.Context) ([]*entity.Schema, error) {
	metrics.IncDBOp("schemas", "list")

	opts := options.Find().SetSort(bson.D{bson.E{Key: "created_at", Value: 1}})
	cur, err := r.col.Find(ctx, bson.D{}, opts)
	if err != nil {
		metrics.IncError("mongo_schema_repo", "list_error")
		return nil, err
	}
	defer func() {
		if err := cur.Close(ctx); err != nil {
			log.Printf("close cursor err: %s", err)
		}
	}()

	var schemas []*entity.Schema
	for cur.Next(ctx) {
		var s entity.Schema
		if err := cur.Decode(&s); err != nil {
			metrics.IncError("mongo_schema_repo", "list_decode_error")
			return nil, err
		}
		s.LinkEndpoints()
		schemas = append(schemas, &s)
	}
	return schemas, cur.Err()
}

func (r *MongoSchemaRepo) Delete(ctx context.Context, id string) error {
	metrics.IncDBOp("schemas", "delete")

	res, err := r.col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		metrics.IncError("mongo_schema_repo", "delete_error")
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("schema %s: %w", id, entity.ErrNotFound)
	}
	return nil
}
