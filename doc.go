// Package goJWT issues and verifies compact signed tokens, resolving
// verification keys from a local or remote key bundle that is cached,
// rotated and refreshed on access.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goJWT is the public surface. It exposes [Engine], [Builder], [Config] and
// value types (MetricsSnapshot, AuditEvent, SecurityReport). Token encoding
// lives in jwt/, signing strategies in algorithm/, key bundles in keys/.
// The engine wires them together and adds configuration, metrics, audit
// events and logging.
//
// # What this package must NOT do
//
//   - Accept the none algorithm unless Token.AllowNone is set.
//   - Drop a rotated key before the retention window passes.
//   - Perform I/O in Build other than loading the configured key source.
//   - Import any sub-package that re-imports goJWT (no import cycles).
//
// # Performance contract
//
// Verify is the hot path. With a fresh key bundle it does no I/O; a stale
// bundle costs one conditional GET shared by all concurrent callers.
package goJWT
