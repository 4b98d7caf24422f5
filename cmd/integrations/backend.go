package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	glog "github.com/goliatone/go-logger/glog"
	goredis "github.com/redis/go-redis/v9"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/migrations"
	cachestore "github.com/goliatone/go-integrations/store/cache"
	"github.com/goliatone/go-integrations/store/memory"
	redisstore "github.com/goliatone/go-integrations/store/redis"
	sqlstore "github.com/goliatone/go-integrations/store/sql"
)

type backend struct {
	store  core.KeyValueStore
	locker core.KeyLocker
	close  func() error
}

// Sweeper returns the store's expiry sweep when rows outlive their TTL.
func (b backend) Sweeper() (core.ExpiredSweeper, bool) {
	sweeper, ok := b.store.(core.ExpiredSweeper)
	return sweeper, ok
}

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "go-integrations" }

func openBackend(ctx context.Context, cfg appConfig, logger glog.Logger) (backend, error) {
	if logger == nil {
		logger = glog.Nop()
	}
	var (
		b   backend
		err error
	)
	switch cfg.Backend {
	case backendMemory, "":
		b = backend{store: memory.NewStore(), locker: memory.NewLocker(), close: noopClose}
	case backendRedis:
		b, err = openRedis(ctx, cfg)
	case backendSQLite, backendPostgres:
		b, err = openSQL(ctx, cfg)
	default:
		return backend{}, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return backend{}, err
	}

	if cfg.CacheTTL > 0 {
		cacheService, cacheErr := cachestore.NewDefaultCacheService(cfg.CacheTTL)
		if cacheErr != nil {
			_ = b.close()
			return backend{}, fmt.Errorf("cache service: %w", cacheErr)
		}
		cached, cacheErr := cachestore.NewStore(b.store, cacheService)
		if cacheErr != nil {
			_ = b.close()
			return backend{}, fmt.Errorf("cache store: %w", cacheErr)
		}
		b.store = cached
	}

	logger.Info("store backend ready", "backend", cfg.Backend, "cache_ttl", cfg.CacheTTL.String())
	return b, nil
}

func openRedis(ctx context.Context, cfg appConfig) (backend, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return backend{}, fmt.Errorf("redis ping: %w", err)
	}

	var opts []redisstore.Option
	if cfg.RedisKeyPrefix != "" {
		opts = append(opts, redisstore.WithKeyPrefix(cfg.RedisKeyPrefix))
	}
	store, err := redisstore.NewStore(client, opts...)
	if err != nil {
		_ = client.Close()
		return backend{}, err
	}
	locker, err := redisstore.NewLocker(client, opts...)
	if err != nil {
		_ = client.Close()
		return backend{}, err
	}
	return backend{store: store, locker: locker, close: client.Close}, nil
}

func openSQL(ctx context.Context, cfg appConfig) (backend, error) {
	if cfg.DatabaseDSN == "" {
		return backend{}, fmt.Errorf("INTEGRATIONS_DATABASE_DSN is required for %s", cfg.Backend)
	}

	driver, target := "postgres", migrations.DialectPostgres
	var dialect schema.Dialect = pgdialect.New()
	if cfg.Backend == backendSQLite {
		driver, target = "sqlite3", migrations.DialectSQLite
		dialect = sqlitedialect.New()
	}

	sqlDB, err := sql.Open(driver, cfg.DatabaseDSN)
	if err != nil {
		return backend{}, fmt.Errorf("open %s: %w", driver, err)
	}
	if cfg.Backend == backendSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{driver: driver, server: cfg.DatabaseDSN, debug: cfg.Debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return backend{}, fmt.Errorf("persistence client: %w", err)
	}

	_, err = migrations.Register(ctx, func(_ context.Context, d string, _ string, fsys fs.FS) error {
		if d == target {
			client.RegisterSQLMigrations(fsys)
		}
		return nil
	}, migrations.WithValidationTargets(target))
	if err != nil {
		_ = client.Close()
		return backend{}, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return backend{}, fmt.Errorf("migrate: %w", err)
	}

	store, err := sqlstore.NewStoreFromPersistence(client)
	if err != nil {
		_ = client.Close()
		return backend{}, err
	}
	return backend{store: store, locker: memory.NewLocker(), close: client.Close}, nil
}

func noopClose() error { return nil }
