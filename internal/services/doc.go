// Package services defines shared utilities consumed by the check-in pipeline
// and its collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, file identifiers, and stage names so
//     every log line of a check-in run can be correlated.
//   - Structured error markers plus the Wrap helper that attach stage and
//     operation context to failures while keeping them matchable with
//     errors.Is.
//
// Use these helpers when wiring new pipeline steps so operational behaviour
// (error reporting, observability) stays uniform.
package services
