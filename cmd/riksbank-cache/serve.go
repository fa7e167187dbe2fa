package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/riksbank-cache/internal/fetcher"
	"github.com/ahmethakanbesel/riksbank-cache/internal/job"
	"github.com/ahmethakanbesel/riksbank-cache/internal/metrics"
	"github.com/ahmethakanbesel/riksbank-cache/internal/platform/sqlite"
	"github.com/ahmethakanbesel/riksbank-cache/internal/repository/cache"
	jobrepo "github.com/ahmethakanbesel/riksbank-cache/internal/repository/job"
	"github.com/ahmethakanbesel/riksbank-cache/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the fetch worker pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	cfg := a.cfg

	// Cancelled on SIGINT/SIGTERM so in-flight fetches stop promptly.
	rootCtx, rootCancel := context.WithCancel(parent)
	defer rootCancel()

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	jobRepo := jobrepo.NewRepository(db.DB)
	m := metrics.New()

	opts, err := a.fetcherOptions(m)
	if err != nil {
		return err
	}
	opts = append(opts, fetcher.WithJobRepository(jobRepo))
	fetchSvc := fetcher.NewService(cache.NewSQLite(db.DB), a.newClient(), opts...)
	jobSvc := job.NewService(jobRepo)

	pool := job.NewWorkerPool(jobRepo, fetchSvc, cfg.Workers,
		job.WithJobTimeout(5*time.Minute),
		job.WithObserver(fetchSvc.ObserveJob),
	)
	fetchSvc.SetNotify(pool.Notify)
	poolDone := make(chan struct{})
	go func() {
		pool.Run(rootCtx)
		close(poolDone)
	}()

	// Jobs left running by a previous process go back to pending.
	if err := jobSvc.RecoverStaleJobs(rootCtx); err != nil {
		slog.Error("failed to recover stale jobs", "error", err)
	}
	pool.Notify()

	srv := server.New(rootCtx, cfg.Port, server.Deps{
		Fetcher: fetchSvc,
		Jobs:    jobSvc,
		Metrics: m,
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	slog.Info("server started", "port", cfg.Port, "db", cfg.DBPath, "workers", cfg.Workers)

	var runErr error
	select {
	case <-done:
	case <-parent.Done():
	case runErr = <-serveErr:
		slog.Error("server error", "error", runErr)
	}

	// Stop in-flight requests and fetches first, then wait for the pool.
	rootCancel()
	<-poolDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
	return runErr
}
