package jwks_testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Keypair struct {
	Kid     string
	Private *rsa.PrivateKey
}

func GenerateRSAKeypair(kid string) (Keypair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Kid: kid, Private: priv}, nil
}

// NewRotatingJWKSServer returns a JWKS server whose key set can be swapped at runtime.
//
// Use SetKeys to rotate keys.
func NewRotatingJWKSServer() (*httptest.Server, func(keys []Keypair)) {
	var jwksJSON atomic.Value // string
	jwksJSON.Store(`{"keys":[]}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(jwksJSON.Load().(string)))
	}))

	return srv, func(keys []Keypair) { jwksJSON.Store(string(JWKSJSON(keys))) }
}

// JWKSJSON renders the public halves of keys as a JWKS document.
func JWKSJSON(keys []Keypair) []byte {
	type jwk struct {
		Kty string `json:"kty"`
		Use string `json:"use"`
		Alg string `json:"alg"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	}
	type jwks struct {
		Keys []jwk `json:"keys"`
	}
	out := jwks{Keys: make([]jwk, 0, len(keys))}
	for _, kp := range keys {
		pub := kp.Private.PublicKey
		// e is a big-endian unsigned int.
		e := big.NewInt(int64(pub.E)).Bytes()
		out.Keys = append(out.Keys, jwk{
			Kty: "RSA",
			Use: "sig",
			Alg: "RS256",
			Kid: kp.Kid,
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(e),
		})
	}
	b, _ := json.Marshal(out)
	return b
}

// IDToken describes the claims of a test ID token.
type IDToken struct {
	Issuer   string
	Audience string
	Subject  string

	Email         string
	EmailVerified bool
	Name          string

	Now      time.Time
	ExpDelta time.Duration
	// NbfDelta is omitted from the token when nil.
	NbfDelta *time.Duration
}

// MintIDToken signs an RS256 ID token with kp, setting kid in the header.
func MintIDToken(kp Keypair, tok IDToken) (string, error) {
	claims := jwt.MapClaims{
		"iss": tok.Issuer,
		"aud": tok.Audience,
		"sub": tok.Subject,
		"iat": tok.Now.Unix(),
		"exp": tok.Now.Add(tok.ExpDelta).Unix(),
	}
	if tok.NbfDelta != nil {
		claims["nbf"] = tok.Now.Add(*tok.NbfDelta).Unix()
	}
	if tok.Email != "" {
		claims["email"] = tok.Email
		claims["email_verified"] = tok.EmailVerified
	}
	if tok.Name != "" {
		claims["name"] = tok.Name
	}

	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = kp.Kid
	return t.SignedString(kp.Private)
}

// MintRS256JWT creates a signed ID token carrying only registered claims.
func MintRS256JWT(kp Keypair, iss, aud, sub string, now time.Time, expDelta time.Duration, nbfDelta *time.Duration) (string, error) {
	return MintIDToken(kp, IDToken{
		Issuer:   iss,
		Audience: aud,
		Subject:  sub,
		Now:      now,
		ExpDelta: expDelta,
		NbfDelta: nbfDelta,
	})
}
