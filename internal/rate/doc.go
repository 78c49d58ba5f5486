// Package rate provides fixed-window hit counters.
//
// Key bundles use them to bound how often an unknown key id may force a
// refetch of a remote key set. Without a bound, tokens carrying random kid
// values turn every verification into an outbound request.
//
// # Window semantics
//
// Redis: INCR plus EXPIRE on the first hit of a window. Memory: go-cache
// entries that expire with the window.
//
// # What this package must NOT do
//
//   - Decide what happens when a window is exhausted (the caller does).
//   - Be imported outside this module.
package rate
