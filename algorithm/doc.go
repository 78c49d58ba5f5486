// Package algorithm maps token algorithm names ("HS256", "RS384", "ES512",
// "none") to signing strategies and checks that the supplied key material
// fits the chosen strategy.
//
// The digest and signature math is delegated to golang-jwt signing methods.
// This package owns which method runs, with which key, and how key problems
// are reported.
//
// # What this package must NOT do
//
//   - Parse or serialize tokens (see package jwt).
//   - Fetch or cache keys (see package keys). A [KeyProvider] is the only
//     hook for lazily resolved keys.
//   - Sign with "none" unless the caller asked for [None] explicitly. Builders
//     add a second opt-in on top of that.
package algorithm
