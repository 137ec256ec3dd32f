package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	// AuthMiddleware resolves the caller for every /api route except sign-in
	// and sign-out. Required.
	AuthMiddleware func(http.Handler) http.Handler

	Logger *slog.Logger
	// Metrics enables /metrics and request instrumentation when set.
	Metrics *Metrics
	// RequestTimeout bounds each request's context. Zero disables it.
	RequestTimeout time.Duration
}

// NewRouter constructs the API HTTP router.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	// Health endpoint is unauthenticated (used for infra checks).
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if s.auth != nil {
			r.Handle("/auth/callback", methods{http.MethodPost: s.signIn})
		}
		r.Handle("/auth/signout", methods{http.MethodPost: s.signOut})

		r.Group(func(r chi.Router) {
			r.Use(opts.AuthMiddleware)

			r.Handle("/auth/session", methods{http.MethodGet: s.currentSession})

			r.Handle("/expenses", methods{
				http.MethodGet:  s.listExpenses,
				http.MethodPost: s.createExpense,
			})
			r.Handle("/expenses/summary", methods{http.MethodGet: s.summarizeExpenses})
			r.Handle("/expenses/export", methods{http.MethodGet: s.exportExpenses})
			r.Handle("/expenses/{id}", methods{
				http.MethodGet:    s.getExpense,
				http.MethodPut:    s.updateExpense,
				http.MethodDelete: s.deleteExpense,
			})

			r.Handle("/favorite-routes", methods{
				http.MethodGet:  s.listFavorites,
				http.MethodPost: s.createFavorite,
			})
			r.Handle("/favorite-routes/{id}", methods{
				http.MethodPut:    s.updateFavorite,
				http.MethodDelete: s.deleteFavorite,
			})

			r.Handle("/members", methods{http.MethodGet: s.listMembers})
			r.Handle("/members/{id}", methods{
				http.MethodPut:    s.updateMember,
				http.MethodDelete: s.deactivateMember,
			})
		})
	})
	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			status := statusOf(ww)
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routePattern(r)),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("requestId", middleware.GetReqID(r.Context())),
			)
		})
	}
}
