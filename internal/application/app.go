// Package application wires configuration into the object store, platform
// client, history, cache and coordinator shared by the server and the CLI.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/assetkeeper/internal/admin"
	"github.com/JonMunkholm/assetkeeper/internal/cache"
	"github.com/JonMunkholm/assetkeeper/internal/config"
	"github.com/JonMunkholm/assetkeeper/internal/database"
	"github.com/JonMunkholm/assetkeeper/internal/deploy"
	"github.com/JonMunkholm/assetkeeper/internal/platform"
	"github.com/JonMunkholm/assetkeeper/internal/restore"
	"github.com/JonMunkholm/assetkeeper/internal/storage"
)

// App holds the long-lived collaborators.
type App struct {
	Config       *config.Config
	Store        storage.ObjectStore
	Client       platform.Client
	Pool         *pgxpool.Pool // nil without DATABASE_URL
	Cache        cache.Cache
	History      restore.HistoryStore
	Orchestrator *restore.Orchestrator
	Coordinator  *deploy.Coordinator
	Maintenance  *admin.Maintenance
}

// Option overrides a collaborator New would otherwise build.
type Option func(*App)

// WithClient uses c instead of a QuickSight client.
func WithClient(c platform.Client) Option {
	return func(a *App) { a.Client = c }
}

// WithStore uses s instead of the configured object store.
func WithStore(s storage.ObjectStore) Option {
	return func(a *App) { a.Store = s }
}

// New builds the application. Without a database URL, history and cache are
// kept in memory.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.Store == nil {
		store, err := NewObjectStore(cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		a.Store = store
	}

	if a.Client == nil {
		client, err := platform.NewQuickSightFromConfig(platform.QuickSightConfig{
			Region:          cfg.Platform.Region,
			AccountID:       cfg.Platform.AccountID,
			Namespace:       cfg.Platform.Namespace,
			AccessKeyID:     cfg.Platform.AccessKeyID,
			SecretAccessKey: cfg.Platform.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		a.Client = client
	}

	source := cache.Source{Store: a.Store, Bucket: cfg.ObjectStore.Bucket}
	if cfg.Database.HasDatabase() {
		pool, err := database.Open(ctx, cfg.Database.URL, database.PoolOptions{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		a.Pool = pool
		a.Cache = cache.NewPostgres(pool, source)
		a.History = restore.NewPostgresHistory(pool)
		slog.Info("using postgres for history and cache")
	} else {
		a.Cache = cache.NewMemory(source)
		a.History = restore.NewMemoryHistory()
		slog.Warn("no DATABASE_URL configured, deployment history is kept in memory")
	}

	orch, err := restore.NewOrchestrator(restore.Options{
		Client:  a.Client,
		Store:   a.Store,
		Bucket:  cfg.ObjectStore.Bucket,
		Cache:   a.Cache,
		History: a.History,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Orchestrator = orch

	coord, err := deploy.NewCoordinator(deploy.Options{
		Orchestrator: orch,
		Store:        a.Store,
		Bucket:       cfg.ObjectStore.Bucket,
		Limiter:      deploy.NewLimiter(cfg.Restore.MaxConcurrent, cfg.Restore.MaxWaitTime),
		MaxParallel:  cfg.Restore.BatchParallelism,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Coordinator = coord
	a.Maintenance = &admin.Maintenance{Cache: a.Cache}

	return a, nil
}

// NewObjectStore builds the configured object store backend.
func NewObjectStore(cfg config.ObjectStoreConfig) (storage.ObjectStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendS3:
		store, err := storage.NewS3Store(storage.S3Config{
			EndpointURL:     cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Region:          cfg.Region,
			UseSSL:          cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendLocal:
		return storage.NewLocalStore(cfg.LocalRoot), nil
	case config.BackendMemory:
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown object store backend %q", cfg.Backend)
	}
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
