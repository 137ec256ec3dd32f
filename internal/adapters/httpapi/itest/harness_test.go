package itest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/commute-ledger/transit-expense-api/internal/adapters/httpapi"
	memclock "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/clock"
	memexpenserepo "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/expenserepo"
	memfavoriterepo "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/favoriterepo"
	memidempotency "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/idempotency"
	memmemberrepo "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/memberrepo"
	pgexpenserepo "github.com/commute-ledger/transit-expense-api/internal/adapters/postgres/expenserepo"
	pgfavoriterepo "github.com/commute-ledger/transit-expense-api/internal/adapters/postgres/favoriterepo"
	pgidempotency "github.com/commute-ledger/transit-expense-api/internal/adapters/postgres/idempotency"
	pgmemberrepo "github.com/commute-ledger/transit-expense-api/internal/adapters/postgres/memberrepo"
	postgres_testutil "github.com/commute-ledger/transit-expense-api/internal/adapters/postgres/testutil"
	"github.com/commute-ledger/transit-expense-api/internal/app/expenses"
	"github.com/commute-ledger/transit-expense-api/internal/app/favorites"
	"github.com/commute-ledger/transit-expense-api/internal/app/members"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/expenserepo"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/favoriterepo"
	idempotencyport "github.com/commute-ledger/transit-expense-api/internal/ports/out/idempotency"
	memberrepoport "github.com/commute-ledger/transit-expense-api/internal/ports/out/memberrepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client

	// Seeded accounts. Emails are unique per server so a shared database
	// can be reused across runs.
	admin  string
	alice  string
	bob    string
	domain string
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2025, 1, 10, 15, 0, 0, 0, time.UTC))

	var (
		memberRepo   memberrepoport.Repository
		expenseRepo  expenserepo.Repository
		favoriteRepo favoriterepo.Repository
		idemStore    idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		memberRepo = pgmemberrepo.NewRepo(pool)
		expenseRepo = pgexpenserepo.NewRepo(pool)
		favoriteRepo = pgfavoriterepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool)
	case backendMemory:
		mr := memmemberrepo.NewRepo()
		memberRepo = mr
		expenseRepo = memexpenserepo.NewRepo(mr)
		favoriteRepo = memfavoriterepo.NewRepo()
		idemStore = memidempotency.NewStore()
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	memberSvc := members.NewService(memberRepo, clk)
	srv := httpapi.NewServer(httpapi.Services{
		Expenses:  expenses.NewService(expenseRepo, clk),
		Favorites: favorites.NewService(favoriteRepo, clk),
		Members:   memberSvc,
	}, httpapi.ServerOptions{
		Idempotency: idemStore,
		Clock:       clk,
	})

	// Integration tests use the dev auth middleware to stay fully local and deterministic.
	// With no default email every request must carry X-Debug-Email.
	handler := httpapi.NewRouter(srv, httpapi.RouterOptions{
		AuthMiddleware: httpapi.NewDevAuthMiddleware(memberSvc, "", nil),
	})

	hs := httptest.NewServer(handler)
	t.Cleanup(hs.Close)

	ts := &testServer{
		baseURL: hs.URL,
		client:  hs.Client(),
		domain:  "it-" + uuid.NewString()[:8] + ".example.com",
	}
	ts.admin = "admin@" + ts.domain
	ts.alice = "alice@" + ts.domain
	ts.bob = "bob@" + ts.domain

	ctx := context.Background()
	if _, err := memberSvc.SeedAdmins(ctx, []string{ts.admin}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	for _, in := range []members.SignInInput{
		{Email: ts.alice, Name: "Alice"},
		{Email: ts.bob, Name: "Bob"},
	} {
		if _, err := memberSvc.SignIn(ctx, in); err != nil {
			t.Fatalf("sign in %s: %v", in.Email, err)
		}
	}
	return ts
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, email string, body any, headers ...string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if email != "" {
		req.Header.Set("X-Debug-Email", email)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatus(t *testing.T, status int, body []byte, want int) {
	t.Helper()
	if status != want {
		t.Fatalf("status=%d want=%d body=%s", status, want, string(body))
	}
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	requireStatus(t, status, body, wantStatus)
	got := mustUnmarshal[errorResponse](t, body)
	if got.Code != wantCode {
		t.Fatalf("code=%q want=%q body=%s", got.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
