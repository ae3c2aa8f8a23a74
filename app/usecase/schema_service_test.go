package usecase_test

import (
	"context"
	"errors"
	"testing"

	"apigen/app/usecase"
	"apigen/internal/domain/entity"
	"apigen/internal/infrastructure/store/memory"
)

func TestCreateSchemaLinksEndpoints(t *testing.T) {
	svc := usecase.NewSchemaService(memory.NewSchemaRepo())
	ctx := context.Background()

	s, err := svc.CreateSchema(ctx, usecase.CreateSchemaInput{
		EntityName: "Book",
		Fields:     []string{"title"},
		Endpoints: []entity.Endpoint{
			{Method: "GET", Path: "/books/search", ResponseBody: "List<Book>"},
			{Method: "GET", Path: "/books/count", ResponseBody: "long"},
		},
	})
	if err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}

	got, err := svc.GetSchema(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSchema: %v", err)
	}
	if len(got.Endpoints) != 2 {
		t.Fatalf("endpoints = %d", len(got.Endpoints))
	}
	for _, e := range got.Endpoints {
		if e.SchemaID != s.ID {
			t.Errorf("endpoint %s points at %q", e.Path, e.SchemaID)
		}
	}
}

func TestSchemaServiceErrors(t *testing.T) {
	svc := usecase.NewSchemaService(memory.NewSchemaRepo())
	ctx := context.Background()

	if _, err := svc.CreateSchema(ctx, usecase.CreateSchemaInput{EntityName: "not valid"}); !errors.Is(err, entity.ErrInvalidSchema) {
		t.Fatalf("CreateSchema error = %v", err)
	}
	if _, err := svc.GetSchema(ctx, ""); !errors.Is(err, entity.ErrInvalidInput) {
		t.Fatalf("GetSchema(\"\") error = %v", err)
	}
	if _, err := svc.GetSchema(ctx, "missing"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("GetSchema(missing) error = %v", err)
	}
	if err := svc.DeleteSchema(ctx, "missing"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("DeleteSchema(missing) error = %v", err)
	}
}

func TestListAndDeleteSchemas(t *testing.T) {
	svc := usecase.NewSchemaService(memory.NewSchemaRepo())
	ctx := context.Background()

	a, _ := svc.CreateSchema(ctx, usecase.CreateSchemaInput{EntityName: "Book"})
	b, _ := svc.CreateSchema(ctx, usecase.CreateSchemaInput{EntityName: "Author"})

	if err := svc.DeleteSchema(ctx, a.ID); err != nil {
		t.Fatalf("DeleteSchema: %v", err)
	}
	list, err := svc.ListSchemas(ctx)
	if err != nil {
		t.Fatalf("ListSchemas: %v", err)
	}
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("list = %+v", list)
	}
}

func TestJobServiceLookups(t *testing.T) {
	jobs := memory.NewJobRepo()
	files := memory.NewGeneratedFileRepo()
	svc := usecase.NewJobService(jobs, files)
	ctx := context.Background()

	if _, err := svc.GetJob(ctx, ""); !errors.Is(err, entity.ErrInvalidInput) {
		t.Fatalf("GetJob(\"\") error = %v", err)
	}
	if _, err := svc.GetFiles(ctx, "missing"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("GetFiles(missing) error = %v", err)
	}

	j1 := entity.NewGenerationJob(entity.Schema{ID: "s1", EntityName: "Book"})
	j2 := entity.NewGenerationJob(entity.Schema{ID: "s2", EntityName: "Author"})
	for _, j := range []*entity.GenerationJob{j1, j2} {
		if err := jobs.Create(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	all, _ := svc.ListJobs(ctx, "")
	if len(all) != 2 {
		t.Fatalf("ListJobs = %d", len(all))
	}
	only, _ := svc.ListJobs(ctx, "s2")
	if len(only) != 1 || only[0].ID != j2.ID {
		t.Fatalf("ListJobs(s2) = %+v", only)
	}

	empty, err := svc.GetFiles(ctx, j1.ID)
	if err != nil || len(empty) != 0 {
		t.Fatalf("GetFiles = %v, %v", empty, err)
	}
}
