// Package keys manages signing and verification keys: typed JWK records, a
// bundle loaded from memory, a local JWKS or DER file, or a remote JWKS URL,
// and a jar grouping bundles by issuer.
//
// # Lifecycle
//
// Remote bundles fetch lazily. A fetch is a conditional GET carrying the
// last ETag; 304 only moves the freshness deadline, 200 replaces the key
// set. Keys missing from a new set stay in the bundle marked inactive, so
// tokens signed before a rotation keep verifying until PruneInactive drops
// them. Concurrent refreshes of one bundle share a single fetch.
//
// # What this package must NOT do
//
//   - Fail an accessor because a refresh failed. The previous keys are kept
//     and the error is available from LastError.
//   - Return a JWKS with symmetric secrets unless private output was asked for.
//   - Refresh in the background. Staleness is checked on access.
package keys
