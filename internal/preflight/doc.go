// Package preflight provides readiness checks for the filesystem paths,
// external binaries, and catalog store mediashelf depends on.
//
// The CLI "mediashelf status" command runs RunAll and renders each Result.
// Binary checks are gated by their feature toggle: ffmpeg and ffprobe are
// only required when thumbnails are enabled, and lsblk is always optional.
package preflight
