package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"apigen/app/config"
	"apigen/app/usecase"
	"apigen/internal/domain/entity"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestReadSchemaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.yaml")
	src := `
entity_name: Book
base_path: /books
fields:
  - "title: String"
  - "author: String"
endpoints:
  - method: GET
    path: /books/search
    response_body: List<Book>
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	in, err := readSchemaFile(path)
	if err != nil {
		t.Fatalf("readSchemaFile: %v", err)
	}
	if in.EntityName != "Book" || in.BasePath != "/books" || len(in.Fields) != 2 {
		t.Fatalf("input = %+v", in)
	}
	if len(in.Endpoints) != 1 || in.Endpoints[0].ResponseBody != "List<Book>" {
		t.Fatalf("endpoints = %+v", in.Endpoints)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("fields: {"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readSchemaFile(bad); !errors.Is(err, entity.ErrInvalidInput) {
		t.Fatalf("bad yaml error = %v", err)
	}
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	root := t.TempDir()
	return &config.Config{
		LLM: config.LLMConfig{
			APIKey:     "k",
			BaseURL:    baseURL,
			Model:      "test-model",
			Timeout:    5 * time.Second,
			MaxRetries: 0,
		},
		Generation: config.GenerationConfig{Timeout: 10 * time.Second},
		Workspace: config.WorkspaceConfig{
			Dir:        filepath.Join(root, "ws"),
			ArchiveDir: filepath.Join(root, "archives"),
		},
	}
}

func TestRunGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		text := "//---MODEL---\nclass Book {}\n//---BUILD---\n<project/>\n"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
			}},
		})
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	out := filepath.Join(t.TempDir(), "out", "book.zip")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	in, err := readSchemaFileFromString(t, "entity_name: Book\nfields: [title]\n")
	if err != nil {
		t.Fatal(err)
	}
	got, err := runGenerate(context.Background(), cfg, logger, in, out)
	if err != nil {
		t.Fatalf("runGenerate: %v", err)
	}
	if got != out {
		t.Fatalf("path = %s", got)
	}

	r, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "pom.xml,src/main/java/com/example/model/Book.java" {
		t.Fatalf("entries = %v", names)
	}

	left, _ := os.ReadDir(cfg.Workspace.ArchiveDir)
	if len(left) != 0 {
		t.Fatalf("archive dir not empty: %v", left)
	}
}

func TestRunGenerateUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"bad prompt"}}`)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	in, _ := readSchemaFileFromString(t, "entity_name: Book\n")
	out := filepath.Join(t.TempDir(), "book.zip")

	_, err := runGenerate(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), in, out)
	if !errors.Is(err, entity.ErrUpstreamProtocol) {
		t.Fatalf("error = %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("output written on failure")
	}
}

func TestRootCommandRequiresAPIKey(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APIGEN_LLM_API_KEY", "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"generate", "--schema", "missing.yaml"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "llm.api_key") {
		t.Fatalf("error = %v", err)
	}
}

func readSchemaFileFromString(t *testing.T, src string) (usecase.CreateSchemaInput, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return readSchemaFile(path)
}
