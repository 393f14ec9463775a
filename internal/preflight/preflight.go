package preflight

import (
	"context"
	"path/filepath"

	"mediashelf/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Pinger is satisfied by the catalog store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunAll executes every applicable check. store may be nil when the catalog
// could not be opened; the store check then reports openErr.
func RunAll(ctx context.Context, cfg *config.Config, store Pinger, openErr error) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Inbox directory", cfg.Paths.InboxDir),
		CheckDirectoryAccess("Archive directory", cfg.Paths.ArchiveDir),
		CheckDirectoryAccess("Database directory", filepath.Dir(cfg.Paths.DatabasePath)),
		CheckStore(ctx, store, openErr),
	}

	if cfg.Thumbnail.Enabled {
		results = append(results,
			CheckDirectoryAccess("Thumbnail directory", cfg.Paths.ThumbnailDir),
			CheckBinary(Requirement{Name: "FFmpeg", Command: cfg.Thumbnail.FFmpegBinary, Description: "Required for thumbnails"}),
			CheckBinary(Requirement{Name: "FFprobe", Command: cfg.Thumbnail.FFprobeBinary, Description: "Required for cover detection"}),
		)
	}
	results = append(results, CheckBinary(Requirement{
		Name:        "lsblk",
		Command:     "lsblk",
		Description: "Reads removable volume labels",
		Optional:    true,
	}))
	return results
}

// Failed reports whether any required check did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}
