package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"apigen/app/config"
	"apigen/app/usecase"
	"apigen/internal/domain/repository"
	"apigen/internal/infrastructure/archive"
	"apigen/internal/infrastructure/events"
	"apigen/internal/infrastructure/layout"
	"apigen/internal/infrastructure/llm"
	"apigen/internal/infrastructure/store/filesystem"
)

// rootOptions are filled by persistent flags and the pre-run hook.
type rootOptions struct {
	configFile string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "apigen",
		Short: "Generate Spring Boot CRUD projects from an entity schema",
		Long: `apigen turns an entity description into a zipped Spring Boot project.
The code itself is produced by a language model; apigen composes the prompt,
splits the answer into files and packages them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Log.Level = opts.logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = newLogger(cfg.Log.Level)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newGenerateCmd(opts))
	return root
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// pipelineDeps are the storage-independent parts of the generation pipeline
// shared by both commands.
type pipelineDeps struct {
	workspaces *filesystem.WorkspaceRepository
	layout     *layout.HCLLayout
	llm        repository.LLMGenerator
	archiver   *archive.ZipArchiver
}

func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipelineDeps, error) {
	workspaces, err := filesystem.NewWorkspaceRepository(cfg.Workspace.Dir, cfg.Workspace.ArchiveDir, logger)
	if err != nil {
		return nil, fmt.Errorf("init workspace repo: %w", err)
	}
	if cfg.Workspace.StaleAfter > 0 {
		if n := workspaces.Sweep(cfg.Workspace.StaleAfter); n > 0 {
			logger.Info("swept stale workspaces", "count", n)
		}
	}

	lay := layout.Default()
	if cfg.Layout.File != "" {
		lay, err = layout.Load(cfg.Layout.File)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded layout", "file", cfg.Layout.File)
	}

	policy := llm.DefaultRetryPolicy()
	policy.MaxRetries = cfg.LLM.MaxRetries
	if cfg.LLM.BaseDelay > 0 {
		policy.BaseDelay = cfg.LLM.BaseDelay
	}
	if cfg.LLM.MaxDelay > 0 {
		policy.MaxDelay = cfg.LLM.MaxDelay
	}

	gen := llm.NewGeminiGenerator(
		cfg.LLM.APIKey,
		cfg.LLM.BaseURL,
		cfg.LLM.Model,
		llm.WithRetryPolicy(policy),
		llm.WithAttemptTimeout(cfg.LLM.Timeout),
		llm.WithLogger(logger),
	)

	return &pipelineDeps{
		workspaces: workspaces,
		layout:     lay,
		llm:        gen,
		archiver:   archive.NewZipArchiver(),
	}, nil
}

func (d *pipelineDeps) scaffold(
	sr repository.SchemaRepository,
	jr repository.JobRepository,
	fr repository.GeneratedFileRepository,
	hub *events.Hub,
	logger *slog.Logger,
	cfg *config.Config,
) *usecase.ScaffoldGenerator {
	var publisher usecase.EventPublisher
	if hub != nil {
		publisher = hub
	}
	return usecase.NewScaffoldGenerator(sr, jr, fr, d.llm, d.workspaces, d.archiver, d.layout, publisher, logger, cfg.Generation.Timeout)
}
