package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"apigen/app/config"
	"apigen/app/usecase"
	"apigen/internal/infrastructure/events"
	"apigen/internal/infrastructure/metrics"
	mongorepo "apigen/internal/infrastructure/store/mongodb"
	"apigen/internal/infrastructure/transport"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the metrics server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts.cfg, opts.logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Mongo.URI == "" || cfg.Mongo.Database == "" {
		return errors.New("mongo.uri and mongo.database are required")
	}

	// Connect to MongoDB
	mongoCtx, mongoCancel := context.WithTimeout(ctx, 30*time.Second)
	defer mongoCancel()
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Error("mongo connect failed", "err", err)
		return fmt.Errorf("mongo connect: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("disconnecting mongo")
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			logger.Error("mongo disconnect error", "err", err)
		}
	}()
	if err := mongoClient.Ping(mongoCtx, nil); err != nil {
		logger.Error("mongo ping failed", "err", err)
		return fmt.Errorf("mongo ping: %w", err)
	}
	logger.Info("connected to mongo", "database", cfg.Mongo.Database)
	db := mongoClient.Database(cfg.Mongo.Database)

	// Repositories
	schemaRepo := mongorepo.NewMongoSchemaRepo(db)
	jobRepo := mongorepo.NewMongoJobRepo(db)
	fileRepo := mongorepo.NewMongoGeneratedFileRepo(db)

	deps, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}

	// Usecases / services
	hub := events.NewHub(64)
	schemaSvc := usecase.NewSchemaService(schemaRepo)
	jobSvc := usecase.NewJobService(jobRepo, fileRepo)
	scaffold := deps.scaffold(schemaRepo, jobRepo, fileRepo, hub, logger, cfg)

	// Transport (HTTP handlers)
	handler := transport.NewScaffoldHandler(schemaSvc, jobSvc, scaffold, hub, logger, prometheus.DefaultRegisterer)

	// Router and server
	r := mux.NewRouter()
	handler.RegisterRoutes(r)
	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.ExposedHeaders([]string{"Content-Disposition", "X-Job-ID"}),
	)(r)
	recovered := handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
	)(corsHandler)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      recovered,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	metricsSrv := metrics.NewServer(cfg.Metrics.Addr)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("starting metrics server", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	// Shutdown sequence
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("shutting down http server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "err", err)
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "err", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("service stopped")
	return nil
}
