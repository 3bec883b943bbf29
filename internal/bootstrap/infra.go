package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/vitalsense/analysis-jobs/config"
	"github.com/vitalsense/analysis-jobs/internal/adapters/broker"
	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/data"
)

// JobBackend is a job store that also supports the stale pending sweep.
// Every store adapter satisfies it.
type JobBackend interface {
	core.JobStore
	core.StaleJobStore
}

// Infrastructure holds the connections and adapters selected by the backend configuration.
type Infrastructure struct {
	DB     *sql.DB
	Redis  redis.UniversalClient
	Store  JobBackend
	Broker core.Broker

	closers []func() error
}

// InfraDeps groups the inputs needed to open the infrastructure.
type InfraDeps struct {
	Config *config.AppConfig
	Logger *slog.Logger

	// DB and Redis let callers inject existing connections, mostly for tests.
	DB    *sql.DB
	Redis redis.UniversalClient
}

// OpenInfrastructure connects the databases the configured backends need and builds the store and broker.
// On error every connection opened so far is closed.
func OpenInfrastructure(ctx context.Context, deps InfraDeps) (infra *Infrastructure, err error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	infra = &Infrastructure{DB: deps.DB, Redis: deps.Redis}
	defer func() {
		if err != nil {
			if cerr := infra.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
			infra = nil
		}
	}()

	if err = infra.connect(ctx, cfg, logger); err != nil {
		return infra, err
	}

	store, err := buildStore(ctx, infra, cfg, logger)
	if err != nil {
		return infra, fmt.Errorf("build %s store: %w", cfg.Backends.Store, err)
	}
	infra.Store = store

	b, err := buildBroker(infra, cfg, logger)
	if err != nil {
		return infra, fmt.Errorf("build %s broker: %w", cfg.Backends.Broker, err)
	}
	infra.Broker = b
	infra.closers = append(infra.closers, b.Close)

	logger.InfoContext(ctx, "infrastructure ready",
		"store", cfg.Backends.Store,
		"broker", cfg.Backends.Broker,
	)
	return infra, nil
}

func (i *Infrastructure) connect(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	dbCfg := DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

	if cfg.NeedsPostgres() && i.DB == nil {
		db, err := ConnectDB(dbCfg)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		i.DB = db
		i.closers = append(i.closers, db.Close)

		if cfg.Postgres.RunMigrationsOnStart {
			if err := RunMigrations(ctx, db, logger); err != nil {
				return err
			}
		} else {
			logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		}
	}

	if cfg.NeedsRedis() && i.Redis == nil {
		client, err := ConnectRedis(dbCfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		i.Redis = client
		i.closers = append(i.closers, client.Close)
	}

	return nil
}

//nolint:ireturn // the backend is selected at runtime.
func buildStore(ctx context.Context, infra *Infrastructure, cfg *config.AppConfig, logger *slog.Logger) (JobBackend, error) {
	switch cfg.Backends.Store {
	case config.StoreBackendPostgres:
		if infra.DB == nil {
			return nil, errors.New("postgres connection is required")
		}
		return data.NewJobRepo(infra.DB, data.RepoConfig{Logger: logger}), nil
	case config.StoreBackendRedis:
		return data.NewRedisJobRepo(data.RedisRepoOptions{
			Client:    infra.Redis,
			KeyPrefix: cfg.Redis.KeyPrefix,
			Logger:    logger,
		})
	case config.StoreBackendSQLite:
		repo, err := data.OpenSQLiteJobRepo(ctx, data.SQLiteRepoOptions{Path: cfg.SQLite.Path, Logger: logger})
		if err != nil {
			return nil, err
		}
		infra.closers = append(infra.closers, repo.Close)
		return repo, nil
	case config.StoreBackendMemory:
		logger.Warn("using in-memory job store; jobs are lost on restart")
		return data.NewMemoryJobRepo(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backends.Store)
	}
}

//nolint:ireturn // the backend is selected at runtime.
func buildBroker(infra *Infrastructure, cfg *config.AppConfig, logger *slog.Logger) (core.Broker, error) {
	switch cfg.Backends.Broker {
	case config.BrokerBackendRedis:
		return broker.NewRedisBroker(broker.RedisOptions{Client: infra.Redis, Logger: logger})
	case config.BrokerBackendPostgres:
		return broker.NewPostgresBroker(broker.PostgresOptions{DB: infra.DB, Logger: logger})
	case config.BrokerBackendMemory:
		return broker.NewMemoryBroker(broker.MemoryOptions{Buffer: cfg.Backends.Buffer, Logger: logger}), nil
	default:
		return nil, fmt.Errorf("unknown broker backend %q", cfg.Backends.Broker)
	}
}

// Close releases the broker and every connection in reverse opening order.
func (i *Infrastructure) Close() error {
	if i == nil {
		return nil
	}
	var errs []error
	for idx := len(i.closers) - 1; idx >= 0; idx-- {
		if err := i.closers[idx](); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	return errors.Join(errs...)
}
