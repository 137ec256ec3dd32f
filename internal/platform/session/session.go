// Package session issues and verifies the HS256 tokens that carry a signed-in
// member between requests.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/clock"
)

const DefaultIssuer = "transit-expense-api"

var ErrInvalidToken = errors.New("invalid session token")

type Options struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clock  clock.Clock
}

func NewManager(opts Options, clk clock.Clock) (*Manager, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	if clk == nil {
		return nil, errors.New("clock is required")
	}
	issuer := opts.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Manager{secret: opts.Secret, ttl: opts.TTL, issuer: issuer, clock: clk}, nil
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a token for memberID that expires after the configured TTL.
func (m *Manager) Issue(memberID domain.MemberID) (string, time.Time, error) {
	if memberID == "" {
		return "", time.Time{}, errors.New("member id is required")
	}
	now := m.clock.Now().UTC()
	exp := now.Add(m.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   string(memberID),
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies signature, issuer and expiry and returns the member id.
func (m *Manager) Parse(token string) (domain.MemberID, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	return domain.MemberID(claims.Subject), nil
}
