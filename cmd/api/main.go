package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/commute-ledger/transit-expense-api/internal/adapters/httpapi"
	"github.com/commute-ledger/transit-expense-api/internal/app/auth"
	"github.com/commute-ledger/transit-expense-api/internal/app/expenses"
	"github.com/commute-ledger/transit-expense-api/internal/app/favorites"
	"github.com/commute-ledger/transit-expense-api/internal/app/members"
	"github.com/commute-ledger/transit-expense-api/internal/bootstrap"
	"github.com/commute-ledger/transit-expense-api/internal/platform/auth/jwtverifier"
	platformclock "github.com/commute-ledger/transit-expense-api/internal/platform/clock"
	"github.com/commute-ledger/transit-expense-api/internal/platform/config"
	"github.com/commute-ledger/transit-expense-api/internal/platform/logging"
	"github.com/commute-ledger/transit-expense-api/internal/platform/session"
)

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		slog.Error("invalid config", slog.Any("err", err))
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Log.Level).With(
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
	)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := platformclock.NewSystemClock()

	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	memberSvc := members.NewService(stores.Members, clk)
	// Create-only: a restart never re-promotes or reactivates existing members.
	if len(cfg.Admin.Emails) > 0 {
		seeded, err := memberSvc.SeedAdmins(ctx, cfg.Admin.Emails)
		if err != nil {
			return err
		}
		logger.Info("admins seeded", slog.Int("count", len(seeded)))
	}

	svc := httpapi.Services{
		Expenses:  expenses.NewService(stores.Expenses, clk),
		Favorites: favorites.NewService(stores.Favorites, clk),
		Members:   memberSvc,
	}

	// Auth configuration:
	// - Production: IdP ID token exchanged for a session cookie
	// - Local dev: AUTH_MODE=dev skips sign-in and trusts X-Debug-Email
	var authMW func(http.Handler) http.Handler
	switch cfg.Auth.Mode {
	case config.AuthModeDev:
		logger.Warn("dev auth mode enabled; requests are trusted by X-Debug-Email")
		authMW = httpapi.NewDevAuthMiddleware(memberSvc, cfg.Auth.DevEmail, logger)
	default:
		sessions, err := session.NewManager(session.Options{
			Secret: []byte(cfg.Auth.SessionSecret),
			TTL:    cfg.Auth.SessionTTL,
		}, clk)
		if err != nil {
			return err
		}
		svc.Auth = auth.NewService(jwtverifier.New(cfg.JWT), memberSvc, sessions, cfg.Auth.CompanyDomain)
		authMW = httpapi.NewSessionMiddleware(sessions, memberSvc, cfg.Auth.CookieName, logger)
	}

	metrics := httpapi.NewMetrics()
	api := httpapi.NewServer(svc, httpapi.ServerOptions{
		Idempotency: stores.Idempotency,
		Clock:       clk,
		Logger:      logger,
		Metrics:     metrics,
		Cookie: httpapi.CookieOptions{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.CookieSecure,
		},
	})
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{
		AuthMiddleware: authMW,
		Logger:         logger,
		Metrics:        metrics,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", slog.String("addr", srv.Addr), slog.String("auth", cfg.Auth.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
