// Package middleware adapts token verification to net/http.
//
// # Guards
//
//   - [Guard] rejects requests without a valid bearer token.
//   - [Optional] verifies a bearer token only when one is sent.
//   - [RequireClaim] and [RequireFunc] check the verified token's claims
//     and must be chained after a guard.
//
// Guards read the Authorization header, call Verify, and store the decoded
// token in the request context ([DecodedFromContext]).
//
// # What this package must NOT do
//
//   - Parse or sign tokens itself (delegates to the Verifier).
//   - Fetch keys (the engine's key bundle handles I/O).
//   - Leak why a token was rejected beyond the RFC 6750 error code.
package middleware
