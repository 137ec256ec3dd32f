// Package bootstrap builds the storage adapters selected by configuration.
// It is shared by the API server and the transitctl admin tool.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	memexpenserepo "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/expenserepo"
	memfavoriterepo "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/favoriterepo"
	memidempotency "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/idempotency"
	memmemberrepo "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/memberrepo"
	postgres "github.com/commute-ledger/transit-expense-api/internal/adapters/postgres"
	pgexpenserepo "github.com/commute-ledger/transit-expense-api/internal/adapters/postgres/expenserepo"
	pgfavoriterepo "github.com/commute-ledger/transit-expense-api/internal/adapters/postgres/favoriterepo"
	pgidempotency "github.com/commute-ledger/transit-expense-api/internal/adapters/postgres/idempotency"
	pgmemberrepo "github.com/commute-ledger/transit-expense-api/internal/adapters/postgres/memberrepo"
	redisclient "github.com/commute-ledger/transit-expense-api/internal/adapters/redis"
	redisidempotency "github.com/commute-ledger/transit-expense-api/internal/adapters/redis/idempotency"
	platformclock "github.com/commute-ledger/transit-expense-api/internal/platform/clock"
	"github.com/commute-ledger/transit-expense-api/internal/platform/config"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/expenserepo"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/favoriterepo"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/idempotency"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/memberrepo"
)

type Stores struct {
	Members     memberrepo.Repository
	Expenses    expenserepo.Repository
	Favorites   favoriterepo.Repository
	Idempotency idempotency.Store

	// Pool is nil unless a postgres backend is in use.
	Pool *pgxpool.Pool

	closers []func()
}

// Close releases pools and clients in reverse order of opening.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// OpenPool connects to Postgres using cfg.Postgres.
func OpenPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.Postgres.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Postgres.ConnectTimeout)
		defer cancel()
	}
	return postgres.NewPool(ctx, cfg.Postgres.URL, postgres.PoolOptions{
		MaxConns: cfg.Postgres.MaxConns,
		MinConns: cfg.Postgres.MinConns,
	})
}

// OpenStores wires repositories and the idempotency store for cfg.
// Callers must Close the result.
func OpenStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	s := &Stores{}

	usesPostgres := cfg.Storage.Backend == config.BackendPostgres ||
		cfg.IdempotencyBackend() == config.BackendPostgres
	if usesPostgres {
		pool, err := OpenPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		s.Pool = pool
		s.closers = append(s.closers, pool.Close)

		if cfg.Postgres.AutoMigrate {
			applied, err := postgres.Migrate(ctx, pool)
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrations applied", slog.Any("versions", applied))
		}
	}

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		s.Members = pgmemberrepo.NewRepo(s.Pool)
		s.Expenses = pgexpenserepo.NewRepo(s.Pool)
		s.Favorites = pgfavoriterepo.NewRepo(s.Pool)
	default:
		members := memmemberrepo.NewRepo()
		s.Members = members
		s.Expenses = memexpenserepo.NewRepo(members)
		s.Favorites = memfavoriterepo.NewRepo()
	}

	switch cfg.IdempotencyBackend() {
	case config.BackendPostgres:
		s.Idempotency = pgidempotency.NewStore(s.Pool)
	case config.BackendRedis:
		client, err := redisclient.NewClient(ctx, redisclient.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open redis: %w", err)
		}
		s.closers = append(s.closers, func() { closeRedis(client, logger) })
		s.Idempotency = redisidempotency.NewStore(client, cfg.Idempotency.TTL)
	default:
		s.Idempotency = memidempotency.NewStore(memidempotency.WithTTL(cfg.Idempotency.TTL, platformclock.NewSystemClock()))
	}

	logger.Info("storage ready",
		slog.String("backend", cfg.Storage.Backend),
		slog.String("idempotency", cfg.IdempotencyBackend()),
	)
	return s, nil
}

func closeRedis(c *goredis.Client, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Warn("close redis", slog.Any("err", err))
	}
}
