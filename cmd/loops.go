package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/geopop/harvester/internal/app"
	"github.com/geopop/harvester/internal/logging"
	"github.com/geopop/harvester/internal/loop"
	"github.com/geopop/harvester/internal/ops"
	"github.com/geopop/harvester/internal/pipeline"
	"github.com/geopop/harvester/internal/textnorm"
	"github.com/geopop/harvester/internal/wordlist"
)

// buildPipeline assembles the shared ingestion pipeline from the app's
// services and the word files named in configuration.
func buildPipeline(ctx context.Context, a *app.App) (*pipeline.Pipeline, error) {
	reference, err := loadReferenceSet(ctx, a)
	if err != nil {
		return nil, err
	}

	var stopwords []string
	if len(a.Config.Filter.StopwordFiles) > 0 {
		stopwords, err = wordlist.LoadAll(a.Config.Filter.StopwordFiles...)
		if err != nil {
			return nil, fmt.Errorf("load stopwords: %w", err)
		}
	}
	var relevance []string
	if a.Config.Filter.RelevanceFile != "" {
		relevance, err = wordlist.Load(a.Config.Filter.RelevanceFile)
		if err != nil {
			return nil, fmt.Errorf("load relevance terms: %w", err)
		}
	}
	cleaner := textnorm.NewCleaner(stopwords, relevance)

	return pipeline.New(
		a.Accounts,
		a.Posts,
		a.Coverage,
		a.Blobs,
		a.Publisher,
		cleaner,
		reference,
		a.Clock,
		logging.Named(a.Logger, "pipeline"),
		pipeline.Config{
			BackupPrefix: a.Config.Backup.Prefix,
			Topic:        eventTopic(a),
		},
	), nil
}

func eventTopic(a *app.App) string {
	if a.Config.Events.Provider == "noop" {
		return ""
	}
	return a.Config.Events.Topic
}

func loopConfig(a *app.App) loop.Config {
	return loop.Config{
		PacingMin:    time.Duration(a.Config.Pacing.MinSeconds) * time.Second,
		PacingMax:    time.Duration(a.Config.Pacing.MaxSeconds) * time.Second,
		BackoffFloor: time.Duration(a.Config.Pacing.BackoffFloorSec) * time.Second,
		BackoffMax:   time.Duration(a.Config.Pacing.BackoffCeilingSec) * time.Second,
		RPS:          a.Config.Fetch.RequestsPerSec,
	}
}

// serveOps starts the operational HTTP server in the background and
// shuts it down when ctx finishes. Bind failures abort startup; the
// loops must never run unobservable.
func serveOps(ctx context.Context, a *app.App) (<-chan error, error) {
	server := ops.NewServer(a.Accounts, a.Coverage, logging.Named(a.Logger, "ops"))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Ops.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("ops server shutdown failed", zap.Error(err))
		}
	}()
	a.Logger.Info("ops server listening", zap.Int("port", a.Config.Ops.Port))
	return errCh, nil
}

// runLoop drives a crawl loop until the context is canceled or the ops
// server fails.
func runLoop(ctx context.Context, a *app.App, run func(context.Context) error) error {
	opsErr, err := serveOps(ctx, a)
	if err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- run(loopCtx)
	}()

	select {
	case err := <-opsErr:
		if err != nil {
			cancel()
			<-done
			return fmt.Errorf("ops server failed: %w", err)
		}
		return <-done
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}
