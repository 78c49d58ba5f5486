package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/goJWT/jwt"
)

// Verifier is what the guards need from an engine. *goJWT.Engine satisfies it.
type Verifier interface {
	Verify(ctx context.Context, token string) (*jwt.Decoded, error)
}

type decodedContextKey struct{}

// DecodedFromContext returns the token a guard verified for this request.
func DecodedFromContext(ctx context.Context) (*jwt.Decoded, bool) {
	d, ok := ctx.Value(decodedContextKey{}).(*jwt.Decoded)
	return d, ok
}

// WithDecoded stores d the way the guards do. Useful in handler tests.
func WithDecoded(ctx context.Context, d *jwt.Decoded) context.Context {
	return context.WithValue(ctx, decodedContextKey{}, d)
}

// Guard rejects requests without a valid bearer token.
func Guard(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				unauthorized(w, "")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, "")
				return
			}

			decoded, err := verifier.Verify(r.Context(), token)
			if err != nil {
				unauthorized(w, "invalid_token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithDecoded(r.Context(), decoded)))
		})
	}
}

func unauthorized(w http.ResponseWriter, code string) {
	challenge := "Bearer"
	if code != "" {
		challenge += ` error="` + code + `"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
