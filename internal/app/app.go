// Package app initializes and holds the long-lived services of the
// harvester, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/geopop/harvester/internal/clock/system"
	"github.com/geopop/harvester/internal/config"
	"github.com/geopop/harvester/internal/fetch"
	"github.com/geopop/harvester/internal/harvest"
	"github.com/geopop/harvester/internal/logging"
	"github.com/geopop/harvester/internal/queue"
	"github.com/geopop/harvester/internal/storage/gcs"
	"github.com/geopop/harvester/internal/storage/local"
	"github.com/geopop/harvester/internal/storage/noop"
	"github.com/geopop/harvester/internal/storage/postgres"
)

// App holds the shared services built once at startup: the logger, the
// database pool and its stores, the platform fetcher, the backup blob
// store, and the event publisher. Commands receive an App and pick the
// pieces they need.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Pool      *pgxpool.Pool
	Accounts  harvest.AccountStore
	Posts     harvest.PostStore
	Coverage  harvest.CoverageStore
	Locations harvest.LocationStore
	Fetcher   harvest.Fetcher
	Blobs     harvest.BlobStore
	Publisher harvest.Publisher
	Clock     harvest.Clock

	closers []func() error
}

// New builds an App from configuration. It fails fast: any service that
// cannot be initialized aborts startup.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		Clock:  system.New(),
	}

	pool, err := postgres.Connect(ctx, postgres.PoolConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeMin) * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})

	a.Accounts = postgres.NewAccountStore(pool)
	a.Posts = postgres.NewPostStore(pool)
	a.Coverage = postgres.NewCoverageStore(pool)
	a.Locations = postgres.NewLocationStore(pool)

	fetcher, err := fetch.New(fetch.Config{
		BaseURL:      cfg.Fetch.BaseURL,
		APIKey:       cfg.Fetch.APIKey,
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		MaxRetries:   cfg.Fetch.MaxRetries,
		BackoffBase:  time.Duration(cfg.Fetch.BackoffInitialMs) * time.Millisecond,
		BackoffLimit: time.Duration(cfg.Fetch.BackoffMaxMs) * time.Millisecond,
	}, logging.Named(logger, "fetch"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize fetcher: %w", err)
	}
	a.Fetcher = fetcher

	if err := a.initBlobs(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}

	harvest.InitMetrics()
	logger.Info("application services initialized",
		zap.String("backup_provider", cfg.Backup.Provider),
		zap.String("events_provider", cfg.Events.Provider),
	)
	return a, nil
}

func (a *App) initBlobs(ctx context.Context) error {
	switch a.Config.Backup.Provider {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: a.Config.Backup.Bucket})
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("initialize gcs backup store: %w", err)
		}
		a.Blobs = store
		a.closers = append(a.closers, client.Close)
	case "local":
		store, err := local.New(local.Config{BaseDir: a.Config.Backup.Dir})
		if err != nil {
			return fmt.Errorf("initialize local backup store: %w", err)
		}
		a.Blobs = store
	case "noop":
		a.Blobs = noop.BlobStore{}
	default:
		return fmt.Errorf("unknown backup provider: %s", a.Config.Backup.Provider)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	switch a.Config.Events.Provider {
	case "pubsub":
		client, err := pubsub.NewClient(ctx, a.Config.Events.ProjectID)
		if err != nil {
			return fmt.Errorf("create pubsub client: %w", err)
		}
		pub, err := queue.NewPubSubPublisher(client)
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("initialize pubsub publisher: %w", err)
		}
		a.Publisher = pub
		a.closers = append(a.closers, pub.Close)
	case "noop":
		a.Publisher = queue.NoopPublisher{}
	default:
		return fmt.Errorf("unknown events provider: %s", a.Config.Events.Provider)
	}
	return nil
}

// Close releases every service in reverse initialization order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.Logger.Sync()
}
