// Package testutil provides a migrated Postgres pool for adapter tests.
//
// TEST_DATABASE_URL points at an existing database. Otherwise a throwaway
// container is started with testcontainers when POSTGRES_TESTCONTAINERS=1.
// Tests are skipped when neither is available.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	postgres "github.com/commute-ledger/transit-expense-api/internal/adapters/postgres"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		if os.Getenv("POSTGRES_TESTCONTAINERS") != "1" {
			t.Skip("postgres tests disabled: set TEST_DATABASE_URL or POSTGRES_TESTCONTAINERS=1")
		}
		dsn = startContainer(t)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

// startContainer runs one container per test binary; it is reaped by
// testcontainers' resource reaper when the process exits.
func startContainer(t *testing.T) string {
	t.Helper()
	containerOnce.Do(func() {
		ctx := context.Background()
		c, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("transit"),
			tcpostgres.WithUsername("transit"),
			tcpostgres.WithPassword("transit"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			containerErr = err
			return
		}
		containerDSN, containerErr = c.ConnectionString(ctx, "sslmode=disable")
	})
	if containerErr != nil {
		t.Skipf("postgres container unavailable: %v", containerErr)
	}
	return containerDSN
}
