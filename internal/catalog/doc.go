// Package catalog persists media provenance in SQLite.
//
// The store owns four concerns: the media_records/placement_records pair that
// the check-in pipeline writes in a single transaction, the checksum lookup
// that gates deduplication, the playlist attachments added by downstream
// tooling, and the removable volume inventory. The schema is embedded and
// versioned through a schema_version table; a mismatched version refuses to
// open rather than migrating in place.
//
// Errors wrap ErrUnavailable, ErrConstraintViolation, or ErrSchemaMismatch so
// callers can branch with errors.Is.
package catalog
