package middleware

import (
	"net/http"
)

// Optional lets requests without an Authorization header through untouched
// and verifies the ones that carry a bearer token. A present but invalid
// token is still rejected.
func Optional(verifier Verifier) func(http.Handler) http.Handler {
	guard := Guard(verifier)
	return func(next http.Handler) http.Handler {
		guarded := guard(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			guarded.ServeHTTP(w, r)
		})
	}
}
