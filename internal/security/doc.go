// Package security builds the engine security report: a flat, serializable
// summary of which checks a configured engine applies.
//
// # What this package must NOT do
//
//   - Import the root package (the root package converts its config into
//     ReportInput).
//   - Judge the findings; lint severity lives with Config.Lint.
package security
