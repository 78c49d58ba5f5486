// Package jwt builds and verifies compact signed tokens.
//
// # Building
//
// A [Builder] collects claims and tracks which registered claims are required
// ([NewRiscBuilder], [NewImplicitBuilder], or [NewBuilder] with an explicit
// list). Signing happens first; a required claim left unset is reported after
// the signature succeeded, and the token is discarded.
//
// # Verifying
//
// [Require] starts a [Verification] for one expected algorithm. [Verifier.Verify]
// runs checks in a fixed order and returns the first failure:
//
//  1. three segments, decodable in the configured [Encoding]
//  2. header "alg" equals the expected algorithm name exactly
//  3. signature, using the bound key or a [KeySource] lookup by "kid"
//  4. exp, nbf and iat against the clock with leeway
//  5. issuer, audience, subject and custom claims
//
// Base16 and base32 change only how segments are written. The signing input
// is always the base64url form of header.payload.
//
// # What this package must NOT do
//
//   - Guess a token's segment encoding.
//   - Accept "none" unless both the algorithm and the builder opted in.
//   - Fetch keys itself. Remote keys arrive through a [KeySource], normally a
//     keys.Bundle.
package jwt
