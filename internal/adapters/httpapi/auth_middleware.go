package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/commute-ledger/transit-expense-api/internal/app/members"
	"github.com/commute-ledger/transit-expense-api/internal/domain"
	"github.com/commute-ledger/transit-expense-api/internal/platform/session"
)

type SessionParser interface {
	Parse(token string) (domain.MemberID, error)
}

type MemberResolver interface {
	GetActiveMember(ctx context.Context, id domain.MemberID) (domain.Member, error)
	GetActiveMemberByEmail(ctx context.Context, email string) (domain.Member, error)
}

// NewSessionMiddleware resolves the caller from the session cookie or an
// Authorization: Bearer session token.
//
// The member is reloaded on every request so deactivation and role changes
// take effect without waiting for the token to expire.
func NewSessionMiddleware(sessions SessionParser, resolver MemberResolver, cookieName string, logger *slog.Logger) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := sessionToken(r, cookieName)
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "sign-in required", nil)
				return
			}
			id, err := sessions.Parse(raw)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session", nil)
				return
			}
			m, err := resolver.GetActiveMember(r.Context(), id)
			if err != nil {
				writeResolveError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithMember(r.Context(), m)))
		})
	}
}

func sessionToken(r *http.Request, cookieName string) (string, bool) {
	if authz := r.Header.Get("Authorization"); authz != "" {
		const prefix = "Bearer "
		if !strings.HasPrefix(authz, prefix) {
			return "", false
		}
		raw := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
		return raw, raw != ""
	}
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// NewDevAuthMiddleware is a local/dev-only auth shim.
//
// It resolves an existing member by the X-Debug-Email header, falling back
// to defaultEmail. Do NOT use this in production deployments.
func NewDevAuthMiddleware(resolver MemberResolver, defaultEmail string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := strings.TrimSpace(r.Header.Get("X-Debug-Email"))
			if email == "" {
				email = strings.TrimSpace(defaultEmail)
			}
			if email == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing member (set X-Debug-Email)", nil)
				return
			}
			m, err := resolver.GetActiveMemberByEmail(r.Context(), email)
			if err != nil {
				writeResolveError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithMember(r.Context(), m)))
		})
	}
}

func writeResolveError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var me *members.Error
	if errors.As(err, &me) {
		writeError(w, r, me.Status, me.Code, me.Message, nil)
		return
	}
	writeAppError(w, r, logger, err)
}

var _ SessionParser = (*session.Manager)(nil)
