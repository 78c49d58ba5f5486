package middleware

import (
	"net/http"

	"github.com/MrEthical07/goJWT/jwt"
)

// RequireClaim runs after Guard and answers 403 unless the verified token's
// claim name holds one of values. Array claims match on any element.
func RequireClaim(name string, values ...string) func(http.Handler) http.Handler {
	return RequireFunc(func(d *jwt.Decoded) bool {
		c, ok := d.Claim(name)
		if !ok {
			return false
		}
		got, ok := c.AsStrings()
		if !ok {
			return false
		}
		if len(values) == 0 {
			return true
		}
		for _, g := range got {
			for _, v := range values {
				if g == v {
					return true
				}
			}
		}
		return false
	})
}

// RequireFunc answers 403 unless allow accepts the verified token, and 401
// when no guard ran before it.
func RequireFunc(allow func(*jwt.Decoded) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, ok := DecodedFromContext(r.Context())
			if !ok {
				unauthorized(w, "")
				return
			}
			if !allow(d) {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
