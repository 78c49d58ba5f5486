// Package internal groups helpers that are private to goJWT.
//
// # Sub-packages
//
//   - rate: fixed-window counters (Redis and in-process) bounding kid-miss refetches
//   - security: flat security report built from engine settings
//
// # What this package must NOT do
//
//   - Export types that appear in the public goJWT API other than through
//     root-level aliases.
//   - Be imported by any package outside this module.
package internal
