package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	memclock "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/clock"
	memexpenserepo "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/expenserepo"
	memfavoriterepo "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/favoriterepo"
	memidempotency "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/idempotency"
	memmemberrepo "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/memberrepo"
	"github.com/commute-ledger/transit-expense-api/internal/app/auth"
	"github.com/commute-ledger/transit-expense-api/internal/app/expenses"
	"github.com/commute-ledger/transit-expense-api/internal/app/favorites"
	"github.com/commute-ledger/transit-expense-api/internal/app/members"
	"github.com/commute-ledger/transit-expense-api/internal/domain"
	"github.com/commute-ledger/transit-expense-api/internal/platform/session"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/expenserepo"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/memberrepo"
)

// 2025-01-10 15:00 UTC is 2025-01-11 00:00 in JST.
var fixedNow = time.Date(2025, 1, 10, 15, 0, 0, 0, time.UTC)

type testAPI struct {
	h        http.Handler
	clk      *memclock.ManualClock
	members  *memmemberrepo.Repo
	expenses *memexpenserepo.Repo
	sessions *session.Manager
	metrics  *Metrics

	// tokens by member id
	tokens map[domain.MemberID]string
}

type apiOption func(*apiConfig)

type apiConfig struct {
	expenseRepo func(members memberrepo.Repository) expenserepo.Repository
	verifier    auth.IdentityVerifier
}

// withIdentityVerifier enables POST /api/auth/callback for example.com.
func withIdentityVerifier(v auth.IdentityVerifier) apiOption {
	return func(c *apiConfig) { c.verifier = v }
}

func withExpenseRepo(f func(members memberrepo.Repository) expenserepo.Repository) apiOption {
	return func(c *apiConfig) { c.expenseRepo = f }
}

func newTestAPI(t *testing.T, opts ...apiOption) *testAPI {
	t.Helper()

	var cfg apiConfig
	for _, o := range opts {
		o(&cfg)
	}

	clk := memclock.NewManualClock(fixedNow)
	memberRepo := memmemberrepo.NewRepo()
	expenseMem := memexpenserepo.NewRepo(memberRepo)
	var expenseRepo expenserepo.Repository = expenseMem
	if cfg.expenseRepo != nil {
		expenseRepo = cfg.expenseRepo(memberRepo)
	}

	sessions, err := session.NewManager(session.Options{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		TTL:    time.Hour,
	}, clk)
	require.NoError(t, err)

	memberSvc := members.NewService(memberRepo, clk)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	metrics := NewMetrics()

	svc := Services{
		Expenses:  expenses.NewService(expenseRepo, clk),
		Favorites: favorites.NewService(memfavoriterepo.NewRepo(), clk),
		Members:   memberSvc,
	}
	if cfg.verifier != nil {
		svc.Auth = auth.NewService(cfg.verifier, memberSvc, sessions, "example.com")
	}
	srv := NewServer(svc, ServerOptions{
		Idempotency: memidempotency.NewStore(),
		Clock:       clk,
		Logger:      logger,
		Metrics:     metrics,
	})
	h := NewRouter(srv, RouterOptions{
		AuthMiddleware: NewSessionMiddleware(sessions, memberSvc, "", logger),
		Logger:         logger,
		Metrics:        metrics,
		RequestTimeout: 5 * time.Second,
	})

	api := &testAPI{
		h:        h,
		clk:      clk,
		members:  memberRepo,
		expenses: expenseMem,
		sessions: sessions,
		metrics:  metrics,
		tokens:   map[domain.MemberID]string{},
	}
	api.seed(t, "m1", "Member One", false)
	api.seed(t, "m2", "Member Two", false)
	api.seed(t, "admin", "Admin", true)
	return api
}

func (a *testAPI) seed(t *testing.T, id, name string, admin bool) {
	t.Helper()
	require.NoError(t, a.members.Create(context.Background(), memberrepo.Member{
		ID:        domain.MemberID(id),
		Email:     id + "@example.com",
		Name:      name,
		IsAdmin:   admin,
		IsActive:  true,
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	}))
	tok, _, err := a.sessions.Issue(domain.MemberID(id))
	require.NoError(t, err)
	a.tokens[domain.MemberID(id)] = tok
}

type call struct {
	method  string
	path    string
	as      domain.MemberID // empty: anonymous
	body    any
	headers map[string]string
}

func (a *testAPI) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	switch b := c.body.(type) {
	case nil:
	case string:
		body = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.as != "" {
		req.Header.Set("Authorization", "Bearer "+a.tokens[c.as])
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	a.h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body=%s", rr.Body.String())
	return v
}

func expenseBody(tripType string) map[string]any {
	return map[string]any{
		"date":      "2025-01-10",
		"departure": "東京駅",
		"arrival":   "渋谷駅",
		"amount":    200,
		"transport": "TRAIN",
		"tripType":  tripType,
	}
}

// createExpense posts a one-way expense as caller and returns its id.
func (a *testAPI) createExpense(t *testing.T, as domain.MemberID, date string) string {
	t.Helper()
	body := expenseBody("ONEWAY")
	body["date"] = date
	rr := a.do(t, call{method: http.MethodPost, path: "/api/expenses", as: as, body: body})
	require.Equal(t, http.StatusCreated, rr.Code, "body=%s", rr.Body.String())
	rows := decode[[]expenseResponse](t, rr)
	require.Len(t, rows, 1)
	return rows[0].ID
}
