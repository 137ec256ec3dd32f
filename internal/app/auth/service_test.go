package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commute-ledger/transit-expense-api/internal/adapters/memory/clock"
	memmemberrepo "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/memberrepo"
	"github.com/commute-ledger/transit-expense-api/internal/app/members"
	"github.com/commute-ledger/transit-expense-api/internal/platform/auth/jwtverifier"
	"github.com/commute-ledger/transit-expense-api/internal/platform/session"
)

type stubVerifier struct {
	id  jwtverifier.Identity
	err error
}

func (v stubVerifier) Verify(context.Context, string) (jwtverifier.Identity, error) {
	return v.id, v.err
}

type fixture struct {
	svc      *Service
	members  *members.Service
	sessions *session.Manager
}

func newFixture(t *testing.T, v IdentityVerifier) fixture {
	t.Helper()
	clk := clock.NewManualClock(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC))
	memberSvc := members.NewService(memmemberrepo.NewRepo(), clk)
	sessions, err := session.NewManager(session.Options{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		TTL:    time.Hour,
	}, clk)
	require.NoError(t, err)
	return fixture{
		svc:      NewService(v, memberSvc, sessions, "@Example.com"),
		members:  memberSvc,
		sessions: sessions,
	}
}

func requireAuthError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var ae *Error
	require.True(t, errors.As(err, &ae), "err=%v, want *auth.Error", err)
	assert.Equal(t, status, ae.Status)
	assert.Equal(t, code, ae.Code)
}

func TestSignIn_CreatesMemberAndIssuesSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, stubVerifier{id: jwtverifier.Identity{
		Subject: "idp-1", Email: "Hanako@Example.com", EmailVerified: true, Name: " Hanako  Yamada ",
	}})

	res, err := f.svc.SignIn(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Equal(t, "hanako@example.com", res.Member.Email)
	assert.Equal(t, "Hanako Yamada", res.Member.Name)
	assert.False(t, res.Member.IsAdmin)
	assert.Equal(t, time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC), res.ExpiresAt)

	id, err := f.sessions.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Member.ID, id)

	again, err := f.svc.SignIn(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Equal(t, res.Member.ID, again.Member.ID, "existing member must be reused")
}

func TestSignIn_KeepsSeededAdminRole(t *testing.T) {
	t.Parallel()

	f := newFixture(t, stubVerifier{id: jwtverifier.Identity{
		Subject: "idp-1", Email: "boss@example.com", EmailVerified: true,
	}})
	_, err := f.members.SeedAdmins(context.Background(), []string{"boss@example.com"})
	require.NoError(t, err)

	res, err := f.svc.SignIn(context.Background(), "id-token")
	require.NoError(t, err)
	assert.True(t, res.Member.IsAdmin)
}

func TestSignIn_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		token  string
		v      stubVerifier
		status int
		code   string
	}{
		{
			name:   "empty token",
			token:  "  ",
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "bad token",
			token:  "t",
			v:      stubVerifier{err: fmt.Errorf("%w: expired", jwtverifier.ErrUnauthorized)},
			status: http.StatusUnauthorized,
			code:   "UNAUTHORIZED",
		},
		{
			name:   "unverified email",
			token:  "t",
			v:      stubVerifier{id: jwtverifier.Identity{Subject: "s", Email: "a@example.com"}},
			status: http.StatusForbidden,
			code:   "EMAIL_NOT_VERIFIED",
		},
		{
			name:   "other domain",
			token:  "t",
			v:      stubVerifier{id: jwtverifier.Identity{Subject: "s", Email: "a@gmail.com", EmailVerified: true}},
			status: http.StatusForbidden,
			code:   "DOMAIN_NOT_ALLOWED",
		},
		{
			name:   "lookalike domain",
			token:  "t",
			v:      stubVerifier{id: jwtverifier.Identity{Subject: "s", Email: "a@notexample.com", EmailVerified: true}},
			status: http.StatusForbidden,
			code:   "DOMAIN_NOT_ALLOWED",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, tc.v)
			_, err := f.svc.SignIn(context.Background(), tc.token)
			requireAuthError(t, err, tc.status, tc.code)
		})
	}
}

func TestSignIn_DeactivatedMemberIsForbidden(t *testing.T) {
	t.Parallel()

	f := newFixture(t, stubVerifier{id: jwtverifier.Identity{
		Subject: "idp-1", Email: "gone@example.com", EmailVerified: true,
	}})
	admins, err := f.members.SeedAdmins(context.Background(), []string{"root@example.com"})
	require.NoError(t, err)

	res, err := f.svc.SignIn(context.Background(), "t")
	require.NoError(t, err)
	require.NoError(t, f.members.DeactivateMember(context.Background(), admins[0], res.Member.ID))

	_, err = f.svc.SignIn(context.Background(), "t")
	requireAuthError(t, err, http.StatusForbidden, "MEMBER_INACTIVE")
}

func TestAllowedEmail(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, nil, nil, "example.com")
	assert.True(t, svc.AllowedEmail(" Taro@EXAMPLE.com "))
	assert.False(t, svc.AllowedEmail("taro@example.com.evil"))
	assert.False(t, svc.AllowedEmail("example.com"))

	empty := NewService(nil, nil, nil, "")
	assert.False(t, empty.AllowedEmail("taro@example.com"))
}
