// Package config loads, normalizes, and validates mediashelf configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// MEDIASHELF_INBOX_DIR. The Config type centralizes every knob the CLI needs,
// allowing inbox/archive directories, the catalog database, and external tool
// settings to be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
