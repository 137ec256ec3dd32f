package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/commute-ledger/transit-expense-api/internal/app/auth"
	"github.com/commute-ledger/transit-expense-api/internal/app/expenses"
	"github.com/commute-ledger/transit-expense-api/internal/app/favorites"
	"github.com/commute-ledger/transit-expense-api/internal/app/members"
	"github.com/commute-ledger/transit-expense-api/internal/domain"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/clock"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/idempotency"
)

const maxBodyBytes = 1 << 20

// CookieOptions configures the session cookie written by sign-in.
type CookieOptions struct {
	Name   string
	Secure bool
}

// Services bundles the application services the HTTP adapter drives.
// Auth may be nil when interactive sign-in is disabled (dev auth mode).
type Services struct {
	Expenses  *expenses.Service
	Favorites *favorites.Service
	Members   *members.Service
	Auth      *auth.Service
}

// Server holds the handlers for the JSON API.
type Server struct {
	expenses  *expenses.Service
	favorites *favorites.Service
	members   *members.Service
	auth      *auth.Service

	idem    idempotency.Store
	clk     clock.Clock
	logger  *slog.Logger
	metrics *Metrics
	cookie  CookieOptions
}

type ServerOptions struct {
	Idempotency idempotency.Store
	Clock       clock.Clock
	Logger      *slog.Logger
	Metrics     *Metrics
	Cookie      CookieOptions
}

func NewServer(svc Services, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cookie := opts.Cookie
	if cookie.Name == "" {
		cookie.Name = DefaultSessionCookie
	}
	return &Server{
		expenses:  svc.Expenses,
		favorites: svc.Favorites,
		members:   svc.Members,
		auth:      svc.Auth,
		idem:      opts.Idempotency,
		clk:       opts.Clock,
		logger:    logger,
		metrics:   opts.Metrics,
		cookie:    cookie,
	}
}

// methods dispatches on the request method after authentication has run, so
// an anonymous caller gets 401 before 405.
type methods map[string]http.HandlerFunc

func (m methods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.Method]; ok {
		h(w, r)
		return
	}
	allow := make([]string, 0, len(m))
	for method := range m {
		allow = append(allow, method)
	}
	sort.Strings(allow)
	w.Header().Set("Allow", strings.Join(allow, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method "+r.Method+" is not allowed", nil)
}

// decodeJSON reads a single JSON object into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		msg := "request body must be a JSON object"
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			msg = "missing request body"
		case errors.As(err, &tooLarge):
			msg = "request body too large"
		}
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", msg, nil)
		return false
	}
	if dec.More() {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "request body must contain a single JSON object", nil)
		return false
	}
	return true
}

// pathID binds the {id} path parameter.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil || strings.TrimSpace(id) == "" {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "id is invalid", nil)
		return "", false
	}
	return id, true
}

// queryString binds an optional query parameter; absent yields "".
func queryString(r *http.Request, name string) (string, error) {
	var v *string
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &v); err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	var v *bool
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &v); err != nil {
		return false, err
	}
	return v != nil && *v, nil
}

// caller returns the signed-in member put in context by the auth middleware.
func caller(w http.ResponseWriter, r *http.Request) (domain.Member, bool) {
	m, ok := MemberFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "sign-in required", nil)
	}
	return m, ok
}
