package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/ranking-api/internal/config"
	"github.com/ahmethakanbesel/ranking-api/internal/job"
	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
	"github.com/ahmethakanbesel/ranking-api/internal/platform/logger"
	"github.com/ahmethakanbesel/ranking-api/internal/platform/postgres"
	"github.com/ahmethakanbesel/ranking-api/internal/platform/sqlite"
	jobrepo "github.com/ahmethakanbesel/ranking-api/internal/repository/job"
	"github.com/ahmethakanbesel/ranking-api/internal/server"
	"github.com/ahmethakanbesel/ranking-api/internal/stage"
)

const (
	httpShutdownTimeout = 10 * time.Second
	jobShutdownTimeout  = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

// openStore returns the configured job store and a function releasing it.
func openStore(ctx context.Context, cfg config.Config) (job.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return jobrepo.NewRepository(db.DB), func() { _ = db.Close() }, nil
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return jobrepo.NewPostgresRepository(db.DB), func() { _ = db.Close() }, nil
	default:
		return job.NewMemoryStore(), func() {}, nil
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open job store", "error", err)
		return err
	}
	defer closeStore()

	stages, err := stage.Build(cfg)
	if err != nil {
		slog.Error("failed to configure pipeline stages", "error", err)
		return err
	}

	execOpts := []job.ExecutorOption{
		job.WithPrepareWorkers(cfg.Pipeline.PrepareWorkers),
		job.WithStageTimeout(cfg.Pipeline.StageTimeout),
	}
	if cfg.Pipeline.RankingEnabled {
		execOpts = append(execOpts, job.WithRanker(pipeline.Ranker{}))
	}
	executor := job.NewExecutor(store, stages, execOpts...)
	dispatcher := job.NewDispatcher(executor, cfg.Pipeline.Workers)

	jobSvc := job.NewService(store, dispatcher,
		job.WithItemCounts(cfg.Pipeline.DefaultItemCount, cfg.Pipeline.MaxItemCount))

	if err := jobSvc.RecoverInterruptedJobs(ctx); err != nil {
		slog.Error("failed to recover interrupted jobs", "error", err)
	}

	// Request contexts end with ctx; pipelines are only stopped by the
	// dispatcher shutdown below.
	srv := server.New(ctx, cfg.Port, jobSvc)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("server started", "port", cfg.Port)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if serveErr != nil {
			slog.Error("server error", "error", serveErr)
		}
	}

	// Stop taking submissions first, then let running jobs record their
	// final state.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	jobCtx, jobCancel := context.WithTimeout(context.Background(), jobShutdownTimeout)
	defer jobCancel()
	if err := dispatcher.Shutdown(jobCtx); err != nil {
		slog.Error("jobs did not stop in time", "running", dispatcher.Running(), "error", err)
	}

	slog.Info("server stopped")
	return serveErr
}
