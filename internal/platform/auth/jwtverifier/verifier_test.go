package jwtverifier_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/commute-ledger/transit-expense-api/internal/platform/auth/jwks_testutil"
	"github.com/commute-ledger/transit-expense-api/internal/platform/auth/jwtverifier"
	"github.com/commute-ledger/transit-expense-api/internal/platform/config"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func testConfig(jwksURL string) config.JWTConfig {
	return config.JWTConfig{
		Issuer:                 "test-iss",
		Audience:               "test-aud",
		JWKSURL:                jwksURL,
		ClockSkew:              0,
		JWKSRefreshInterval:    10 * time.Minute,
		JWKSMinRefreshInterval: 0,
		HTTPTimeout:            2 * time.Second,
	}
}

func TestVerifier_Verify_ValidToken(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()

	kp, err := jwks_testutil.GenerateRSAKeypair("kid-1")
	if err != nil {
		t.Fatalf("GenerateRSAKeypair: %v", err)
	}
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	token, err := jwks_testutil.MintIDToken(kp, jwks_testutil.IDToken{
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		Subject:       "idp-123",
		Email:         "hanako@example.com",
		EmailVerified: true,
		Name:          "Hanako",
		Now:           clk.Now(),
		ExpDelta:      5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("MintIDToken: %v", err)
	}

	id, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	want := jwtverifier.Identity{Subject: "idp-123", Email: "hanako@example.com", EmailVerified: true, Name: "Hanako"}
	if id != want {
		t.Fatalf("identity=%+v, want %+v", id, want)
	}
}

func TestVerifier_Verify_EmailVerifiedAsString(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()

	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":            cfg.Issuer,
		"aud":            []string{"other", cfg.Audience},
		"sub":            "idp-1",
		"exp":            clk.Now().Add(time.Minute).Unix(),
		"email":          "taro@example.com",
		"email_verified": "true",
	})
	tok.Header["kid"] = kp.Kid
	signed, err := tok.SignedString(kp.Private)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	id, err := v.Verify(context.Background(), signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !id.EmailVerified || id.Email != "taro@example.com" {
		t.Fatalf("identity=%+v, want verified taro", id)
	}
}

func TestVerifier_Verify_Expired(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()

	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	token, _ := jwks_testutil.MintRS256JWT(kp, cfg.Issuer, cfg.Audience, "idp-123", clk.Now(), -1*time.Minute, nil)
	_, err := v.Verify(context.Background(), token)
	if !errors.Is(err, jwtverifier.ErrUnauthorized) {
		t.Fatalf("err=%v, want ErrUnauthorized", err)
	}
}

func TestVerifier_Verify_ClockSkewAllowsRecentExpiry(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()

	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	cfg.ClockSkew = time.Minute
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	token, _ := jwks_testutil.MintRS256JWT(kp, cfg.Issuer, cfg.Audience, "idp-123", clk.Now(), -30*time.Second, nil)
	if _, err := v.Verify(context.Background(), token); err != nil {
		t.Fatalf("Verify within skew: %v", err)
	}
}

func TestVerifier_Verify_NotYetValid(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()

	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	nbf := 5 * time.Minute
	token, _ := jwks_testutil.MintRS256JWT(kp, cfg.Issuer, cfg.Audience, "idp-123", clk.Now(), 10*time.Minute, &nbf)
	if _, err := v.Verify(context.Background(), token); err == nil {
		t.Fatalf("expected error for nbf in the future")
	}
}

func TestVerifier_Verify_WrongIssuerOrAudience(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()

	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	jwtWrongIss, _ := jwks_testutil.MintRS256JWT(kp, "wrong-iss", cfg.Audience, "idp-123", clk.Now(), 5*time.Minute, nil)
	if _, err := v.Verify(context.Background(), jwtWrongIss); err == nil {
		t.Fatalf("expected error for wrong iss")
	}

	jwtWrongAud, _ := jwks_testutil.MintRS256JWT(kp, cfg.Issuer, "wrong-aud", "idp-123", clk.Now(), 5*time.Minute, nil)
	if _, err := v.Verify(context.Background(), jwtWrongAud); err == nil {
		t.Fatalf("expected error for wrong aud")
	}
}

func TestVerifier_Verify_BadSignature(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()

	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	// Same kid, different private key than what's in JWKS.
	other, _ := rsa.GenerateKey(rand.Reader, 2048)
	otherKP := jwks_testutil.Keypair{Kid: "kid-1", Private: other}
	token, _ := jwks_testutil.MintRS256JWT(otherKP, cfg.Issuer, cfg.Audience, "idp-123", clk.Now(), 5*time.Minute, nil)
	if _, err := v.Verify(context.Background(), token); err == nil {
		t.Fatalf("expected error")
	}
}

func TestVerifier_Verify_RejectsHS256(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()

	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": cfg.Issuer, "aud": cfg.Audience, "sub": "idp-1",
		"exp": clk.Now().Add(time.Minute).Unix(),
	})
	tok.Header["kid"] = kp.Kid
	signed, _ := tok.SignedString([]byte("shared-secret"))
	if _, err := v.Verify(context.Background(), signed); err == nil {
		t.Fatalf("expected HS256 token to be rejected")
	}
}

func TestVerifier_Verify_JWKSRotation_OldKidRejected_NewKidAccepted(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()

	k1, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	k2, _ := jwks_testutil.GenerateRSAKeypair("kid-2")
	setKeys([]jwks_testutil.Keypair{k1})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	cfg.JWKSRefreshInterval = 1 * time.Second
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	jwt1, _ := jwks_testutil.MintRS256JWT(k1, cfg.Issuer, cfg.Audience, "idp-123", clk.Now(), 5*time.Minute, nil)
	if _, err := v.Verify(context.Background(), jwt1); err != nil {
		t.Fatalf("expected jwt1 to verify: %v", err)
	}

	// Rotate: JWKS now only contains kid-2.
	setKeys([]jwks_testutil.Keypair{k2})
	clk.Advance(2 * time.Second) // force interval refresh on next Verify call.

	if _, err := v.Verify(context.Background(), jwt1); err == nil {
		t.Fatalf("expected jwt1 to be rejected after rotation")
	}

	jwt2, _ := jwks_testutil.MintRS256JWT(k2, cfg.Issuer, cfg.Audience, "idp-456", clk.Now(), 5*time.Minute, nil)
	id, err := v.Verify(context.Background(), jwt2)
	if err != nil {
		t.Fatalf("expected jwt2 to verify: %v", err)
	}
	if id.Subject != "idp-456" {
		t.Fatalf("sub=%q, want idp-456", id.Subject)
	}
}

func staticJWKSServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifier_Verify_RejectsKeyPublishedForOtherAlgorithm(t *testing.T) {
	t.Parallel()

	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	body := bytes.Replace(jwks_testutil.JWKSJSON([]jwks_testutil.Keypair{kp}), []byte(`"alg":"RS256"`), []byte(`"alg":"RS512"`), 1)
	srv := staticJWKSServer(t, body)

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(srv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	token, _ := jwks_testutil.MintRS256JWT(kp, cfg.Issuer, cfg.Audience, "idp-123", clk.Now(), 5*time.Minute, nil)
	_, err := v.Verify(context.Background(), token)
	if !errors.Is(err, jwtverifier.ErrUnauthorized) {
		t.Fatalf("err=%v, want ErrUnauthorized", err)
	}
}

func TestVerifier_Verify_MalformedJWKS(t *testing.T) {
	t.Parallel()

	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	srv := staticJWKSServer(t, []byte(`<html>not a key set</html>`))

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(srv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	token, _ := jwks_testutil.MintRS256JWT(kp, cfg.Issuer, cfg.Audience, "idp-123", clk.Now(), 5*time.Minute, nil)
	_, err := v.Verify(context.Background(), token)
	if !errors.Is(err, jwtverifier.ErrUnauthorized) {
		t.Fatalf("err=%v, want ErrUnauthorized", err)
	}
}
