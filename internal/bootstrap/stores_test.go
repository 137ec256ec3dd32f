package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memexpenserepo "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/expenserepo"
	memidempotency "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/idempotency"
	"github.com/commute-ledger/transit-expense-api/internal/platform/config"
)

func TestOpenStores_Memory(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Storage: config.Storage{Backend: config.BackendMemory}}
	s, err := OpenStores(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer s.Close()

	assert.Nil(t, s.Pool)
	assert.IsType(t, &memexpenserepo.Repo{}, s.Expenses)
	assert.IsType(t, &memidempotency.Store{}, s.Idempotency)
	assert.NotNil(t, s.Members)
	assert.NotNil(t, s.Favorites)
}

func TestOpenStores_RedisUnavailable(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Storage: config.Storage{Backend: config.BackendMemory, Idempotency: config.BackendRedis},
		Redis:   config.Redis{Addr: "127.0.0.1:1"},
	}
	_, err := OpenStores(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open redis")
}
