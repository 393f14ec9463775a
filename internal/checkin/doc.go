// Package checkin runs the inbox check-in pipeline.
//
// Each candidate file moves through an explicit state machine:
//
//	Discovered -> Fingerprinted -> Duplicate
//	                            -> New -> Placed -> Registered
//	                                             -> RollingBack -> RolledBack | RollbackFailed
//
// with Failed as the terminal state for files whose fingerprint, dedup lookup,
// or placement failed before anything was registered. Files are processed one
// at a time; one file's failure never undoes another's registration. A run
// holds an exclusive lock on the inbox so two runs cannot claim the same file.
package checkin
