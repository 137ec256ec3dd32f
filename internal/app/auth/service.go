package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/commute-ledger/transit-expense-api/internal/app/members"
	"github.com/commute-ledger/transit-expense-api/internal/domain"
	"github.com/commute-ledger/transit-expense-api/internal/platform/auth/jwtverifier"
)

type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (jwtverifier.Identity, error)
}

type MemberSignIn interface {
	SignIn(ctx context.Context, in members.SignInInput) (domain.Member, error)
}

type SessionIssuer interface {
	Issue(memberID domain.MemberID) (string, time.Time, error)
}

type Service struct {
	verifier      IdentityVerifier
	members       MemberSignIn
	sessions      SessionIssuer
	companyDomain string
}

// NewService wires sign-in. companyDomain is the part after "@" that every
// member email must carry, e.g. "example.com".
func NewService(verifier IdentityVerifier, members MemberSignIn, sessions SessionIssuer, companyDomain string) *Service {
	return &Service{
		verifier:      verifier,
		members:       members,
		sessions:      sessions,
		companyDomain: strings.ToLower(strings.TrimPrefix(strings.TrimSpace(companyDomain), "@")),
	}
}

// SignInResult is a signed-in member plus the session token to hand back.
type SignInResult struct {
	Member    domain.Member
	Token     string
	ExpiresAt time.Time
}

// SignIn exchanges an identity provider ID token for a session.
func (s *Service) SignIn(ctx context.Context, idToken string) (SignInResult, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return SignInResult{}, &Error{
			Status:  http.StatusBadRequest,
			Code:    "VALIDATION_ERROR",
			Message: "idToken is required",
			Details: map[string]any{"idToken": "must be non-empty"},
		}
	}

	id, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		if errors.Is(err, jwtverifier.ErrUnauthorized) {
			return SignInResult{}, &Error{
				Status:  http.StatusUnauthorized,
				Code:    "UNAUTHORIZED",
				Message: "id token could not be verified",
			}
		}
		return SignInResult{}, fmt.Errorf("verify id token: %w", err)
	}
	if !id.EmailVerified {
		return SignInResult{}, &Error{
			Status:  http.StatusForbidden,
			Code:    "EMAIL_NOT_VERIFIED",
			Message: "email address is not verified",
		}
	}
	if !s.AllowedEmail(id.Email) {
		return SignInResult{}, &Error{
			Status:  http.StatusForbidden,
			Code:    "DOMAIN_NOT_ALLOWED",
			Message: "sign-in is restricted to company accounts",
		}
	}

	m, err := s.members.SignIn(ctx, members.SignInInput{Email: id.Email, Name: id.Name})
	if err != nil {
		var me *members.Error
		if errors.As(err, &me) {
			return SignInResult{}, &Error{Status: me.Status, Code: me.Code, Message: me.Message, Details: me.Details}
		}
		return SignInResult{}, err
	}

	token, exp, err := s.sessions.Issue(m.ID)
	if err != nil {
		return SignInResult{}, fmt.Errorf("issue session: %w", err)
	}
	return SignInResult{Member: m, Token: token, ExpiresAt: exp}, nil
}

// AllowedEmail reports whether email belongs to the company domain.
func (s *Service) AllowedEmail(email string) bool {
	if s.companyDomain == "" {
		return false
	}
	return strings.HasSuffix(domain.NormalizeEmail(email), "@"+s.companyDomain)
}
