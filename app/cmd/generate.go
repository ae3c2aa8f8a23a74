package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"apigen/app/config"
	"apigen/app/usecase"
	"apigen/internal/domain/entity"
	"apigen/internal/infrastructure/store/memory"
)

// schemaFile is the YAML form of a schema accepted by the generate command.
//
//	entity_name: Book
//	base_path: /books
//	fields: ["title: String", "author: String"]
//	endpoints:
//	  - method: GET
//	    path: /books/search
//	    response_body: List<Book>
type schemaFile struct {
	EntityName string   `yaml:"entity_name"`
	BasePath   string   `yaml:"base_path"`
	Fields     []string `yaml:"fields"`
	Endpoints  []struct {
		Method       string `yaml:"method"`
		Path         string `yaml:"path"`
		ResponseBody string `yaml:"response_body"`
	} `yaml:"endpoints"`
}

func readSchemaFile(path string) (usecase.CreateSchemaInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return usecase.CreateSchemaInput{}, fmt.Errorf("read schema file: %w", err)
	}
	var sf schemaFile
	if err := yaml.Unmarshal(raw, &sf); err != nil {
		return usecase.CreateSchemaInput{}, fmt.Errorf("%w: decode schema file %s: %w", entity.ErrInvalidInput, path, err)
	}

	in := usecase.CreateSchemaInput{
		EntityName: sf.EntityName,
		BasePath:   sf.BasePath,
		Fields:     sf.Fields,
	}
	for _, e := range sf.Endpoints {
		in.Endpoints = append(in.Endpoints, entity.Endpoint{Method: e.Method, Path: e.Path, ResponseBody: e.ResponseBody})
	}
	return in, nil
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var schemaPath, outPath string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one project archive from a YAML schema file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readSchemaFile(schemaPath)
			if err != nil {
				return err
			}
			dst, err := runGenerate(cmd.Context(), opts.cfg, opts.logger, in, outPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dst)
			return nil
		},
	}

	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "path to the YAML schema file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "archive destination (default <entity>-api.zip)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

// runGenerate runs the pipeline against in-memory stores and moves the
// archive to outPath. It returns the final archive path.
func runGenerate(ctx context.Context, cfg *config.Config, logger *slog.Logger, in usecase.CreateSchemaInput, outPath string) (string, error) {
	deps, err := buildPipeline(cfg, logger)
	if err != nil {
		return "", err
	}

	schemaRepo := memory.NewSchemaRepo()
	jobRepo := memory.NewJobRepo()
	fileRepo := memory.NewGeneratedFileRepo()

	schema, err := usecase.NewSchemaService(schemaRepo).CreateSchema(ctx, in)
	if err != nil {
		return "", err
	}

	scaffold := deps.scaffold(schemaRepo, jobRepo, fileRepo, nil, logger, cfg)
	artifact, err := scaffold.GenerateForSchema(ctx, *schema)
	if err != nil {
		return "", err
	}

	if outPath == "" {
		outPath = artifact.FileName
	}
	if err := moveFile(artifact.Path, outPath); err != nil {
		_ = os.Remove(artifact.Path)
		return "", err
	}
	logger.Info("archive written", "path", outPath, "files", artifact.Entries, "bytes", artifact.Size)
	return outPath, nil
}

// moveFile renames src to dst, falling back to copy and remove when they are
// on different filesystems.
func moveFile(src, dst string) error {
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create output dir: %w", entity.ErrFilesystem, err)
		}
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open archive: %w", entity.ErrFilesystem, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create output: %w", entity.ErrFilesystem, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("%w: copy archive: %w", entity.ErrFilesystem, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close output: %w", entity.ErrFilesystem, err)
	}
	return os.Remove(src)
}
