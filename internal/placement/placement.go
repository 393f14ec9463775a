// Package placement moves checked-in media into the date-partitioned archive
// and, when registration fails, moves it back.
//
// Files land at archive/YYYY/MM/DD/<file_id><ext>. Moves never overwrite an
// existing file: a same-filesystem move uses renameat2(RENAME_NOREPLACE), and
// a cross-filesystem move falls back to an exclusive verified copy followed by
// removal of the source.
package placement

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediashelf/internal/fileutil"
	"mediashelf/internal/logging"
	"mediashelf/internal/services"
)

// ErrAlreadyExists reports that the destination path is occupied and the
// collision policy does not permit picking another name.
var ErrAlreadyExists = errors.New("destination already exists")

// Policy selects how Place reacts to an occupied destination.
type Policy string

const (
	// PolicyFail returns ErrAlreadyExists on collision.
	PolicyFail Policy = "fail"
	// PolicyDisambiguate appends _1, _2, ... before the extension.
	PolicyDisambiguate Policy = "disambiguate"
)

// ParsePolicy maps a configuration value onto a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case PolicyFail:
		return PolicyFail, nil
	case PolicyDisambiguate, "":
		return PolicyDisambiguate, nil
	default:
		return "", services.Wrap(services.ErrValidation, "placement", "parse policy",
			fmt.Sprintf("unknown collision policy %q", value), nil)
	}
}

const defaultMaxAttempts = 10000

// Request describes one forward move.
type Request struct {
	Source      string
	ArchiveRoot string
	FileID      string
	CheckinTime time.Time
	Policy      Policy
}

// Placement records the exact paths of a completed move. MoveBack consumes it
// unchanged.
type Placement struct {
	Source      string
	Destination string
	Dir         string
	FileName    string
}

// Engine performs archive moves.
type Engine struct {
	logger      *slog.Logger
	maxAttempts int
}

// NewEngine constructs an Engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		logger:      logging.NewComponentLogger(logger, "placement"),
		maxAttempts: defaultMaxAttempts,
	}
}

// DatePartition returns root/YYYY/MM/DD for t.
func DatePartition(root string, t time.Time) string {
	return filepath.Join(root, t.Format("2006"), t.Format("01"), t.Format("02"))
}

// Place moves req.Source into the archive under its canonical name.
func (e *Engine) Place(ctx context.Context, req Request) (Placement, error) {
	if err := validateRequest(req); err != nil {
		return Placement{}, err
	}
	logger := logging.WithContext(ctx, e.logger)

	dir := DatePartition(req.ArchiveRoot, req.CheckinTime)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Placement{}, services.Wrap(services.ErrConfiguration, "placement", "ensure archive dir",
			"Failed to create archive directory", err)
	}

	ext := filepath.Ext(req.Source)
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Placement{}, err
		}
		name := req.FileID + ext
		if attempt > 0 {
			name = fmt.Sprintf("%s_%d%s", req.FileID, attempt, ext)
		}
		target := filepath.Join(dir, name)

		err := e.move(ctx, req.Source, target)
		if err == nil {
			logger.Debug("file placed", logging.Args(append(logging.Move(req.Source, target),
				logging.Int("attempt", attempt))...)...)
			return Placement{Source: req.Source, Destination: target, Dir: dir, FileName: name}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return Placement{}, services.Wrap(services.ErrTransient, "placement", "move file",
				fmt.Sprintf("Failed to move %s to %s", req.Source, target), err)
		}
		if req.Policy == PolicyFail {
			return Placement{}, services.Wrap(services.ErrValidation, "placement", "resolve destination",
				fmt.Sprintf("destination %s is occupied", target), ErrAlreadyExists)
		}
	}
	return Placement{}, services.Wrap(services.ErrValidation, "placement", "resolve destination",
		fmt.Sprintf("exhausted %d names for %s in %s", e.maxAttempts, req.FileID, dir), ErrAlreadyExists)
}

// MoveBack restores p.Destination to p.Source. It never overwrites a file at
// p.Source and performs no naming logic.
func (e *Engine) MoveBack(ctx context.Context, p Placement) error {
	if strings.TrimSpace(p.Source) == "" || strings.TrimSpace(p.Destination) == "" {
		return services.Wrap(services.ErrValidation, "placement", "move back", "placement paths are required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(p.Source), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "placement", "move back", "Failed to recreate source directory", err)
	}
	if err := e.move(ctx, p.Destination, p.Source); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return services.Wrap(services.ErrValidation, "placement", "move back",
				fmt.Sprintf("original path %s is occupied", p.Source), ErrAlreadyExists)
		}
		return services.Wrap(services.ErrTransient, "placement", "move back",
			fmt.Sprintf("Failed to move %s back to %s", p.Destination, p.Source), err)
	}
	logging.WithContext(ctx, e.logger).Debug("file restored", logging.Args(logging.Move(p.Source, p.Destination)...)...)
	return nil
}

// move renames src to dst without replacing dst, falling back to a verified
// copy when the paths are on different filesystems. A failed fallback leaves
// src in place and dst absent.
func (e *Engine) move(ctx context.Context, src, dst string) error {
	err := renameNoReplace(src, dst)
	if err == nil || !fileutil.IsCrossDevice(err) {
		return err
	}
	logging.WithContext(ctx, e.logger).Debug("cross-device move, copying", logging.Args(logging.Move(src, dst)...)...)
	if err := fileutil.CopyFileVerified(ctx, src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

func validateRequest(req Request) error {
	switch {
	case strings.TrimSpace(req.Source) == "":
		return services.Wrap(services.ErrValidation, "placement", "validate request", "source path is required", nil)
	case strings.TrimSpace(req.ArchiveRoot) == "":
		return services.Wrap(services.ErrValidation, "placement", "validate request", "archive root is required", nil)
	case strings.TrimSpace(req.FileID) == "":
		return services.Wrap(services.ErrValidation, "placement", "validate request", "file id is required", nil)
	case req.CheckinTime.IsZero():
		return services.Wrap(services.ErrValidation, "placement", "validate request", "check-in time is required", nil)
	}
	switch req.Policy {
	case PolicyFail, PolicyDisambiguate:
		return nil
	default:
		return services.Wrap(services.ErrValidation, "placement", "validate request",
			fmt.Sprintf("unknown collision policy %q", req.Policy), nil)
	}
}
