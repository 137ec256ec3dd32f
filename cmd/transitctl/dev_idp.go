package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/commute-ledger/transit-expense-api/internal/platform/auth/jwks_testutil"
)

type devIDPOptions struct {
	port     string
	issuer   string
	audience string
	kid      string
	ttl      time.Duration
}

// Tiny dev-only ID token issuer + JWKS server.
//
// This is NOT a full OIDC provider. It exists to exercise AUTH_MODE=jwt
// locally: point JWT_JWKS_URL at /.well-known/jwks.json and post the minted
// token to /api/auth/callback.
func newDevIDPCmd() *cobra.Command {
	opts := &devIDPOptions{}
	cmd := &cobra.Command{
		Use:   "dev-idp",
		Short: "Run a local ID token issuer for development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kp, err := jwks_testutil.GenerateRSAKeypair(opts.kid)
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			srv := &http.Server{
				Addr:              ":" + opts.port,
				Handler:           devIDPHandler(kp, opts, time.Now),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-cmd.Context().Done()
				_ = srv.Close()
			}()

			slog.Info("dev-idp listening",
				slog.String("addr", srv.Addr),
				slog.String("iss", opts.issuer),
				slog.String("aud", opts.audience),
				slog.String("kid", opts.kid),
				slog.Duration("ttl", opts.ttl),
			)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.port, "port", "5556", "Listen port")
	cmd.Flags().StringVar(&opts.issuer, "issuer", "http://localhost:5556", "iss claim")
	cmd.Flags().StringVar(&opts.audience, "audience", "transit-expense-api", "aud claim")
	cmd.Flags().StringVar(&opts.kid, "kid", "dev-kid-1", "Key id published in the JWKS")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 30*time.Minute, "Token lifetime")
	return cmd
}

func devIDPHandler(kp jwks_testutil.Keypair, opts *devIDPOptions, now func() time.Time) http.Handler {
	jwksJSON := jwks_testutil.JWKSJSON([]jwks_testutil.Keypair{kp})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwksJSON)
	})

	// Mint an ID token:
	//   GET /token?email=taro@example.co.jp&name=Taro
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		email := strings.TrimSpace(q.Get("email"))
		if email == "" {
			http.Error(w, "missing email", http.StatusBadRequest)
			return
		}
		verified := q.Get("email_verified") != "false"

		issued := now().UTC()
		skew := -5 * time.Second
		token, err := jwks_testutil.MintIDToken(kp, jwks_testutil.IDToken{
			Issuer:        opts.issuer,
			Audience:      opts.audience,
			Subject:       "dev|" + strings.ToLower(email),
			Email:         email,
			EmailVerified: verified,
			Name:          q.Get("name"),
			Now:           issued,
			ExpDelta:      opts.ttl,
			NbfDelta:      &skew,
		})
		if err != nil {
			http.Error(w, "failed to mint token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"idToken": token,
			"iss":     opts.issuer,
			"aud":     opts.audience,
			"exp":     issued.Add(opts.ttl).Unix(),
		})
	})
	return mux
}
