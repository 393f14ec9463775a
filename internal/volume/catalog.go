package volume

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"mediashelf/internal/catalog"
	"mediashelf/internal/fingerprint"
	"mediashelf/internal/logging"
	"mediashelf/internal/services"
)

// Store is the catalog surface used to record volumes.
type Store interface {
	RegisterVolume(ctx context.Context, v catalog.Volume) (catalog.Volume, bool, error)
	AddVolumeFile(ctx context.Context, f catalog.VolumeFile) (bool, error)
}

// Request describes a disc to catalog.
type Request struct {
	Label       string
	HumanNumber int
	Notes       string
	// MountPath, when set, is walked for media files to record.
	MountPath string
	// Extensions limits recorded files; keys carry the leading dot.
	Extensions map[string]struct{}
}

// Result reports what Catalog recorded.
type Result struct {
	Volume  catalog.Volume
	Created bool
	Added   int
	Skipped int
	Failed  int
}

// Cataloger records volumes and their files.
type Cataloger struct {
	store       Store
	fingerprint func(ctx context.Context, path string) (string, error)
	now         func() time.Time
	logger      *slog.Logger
}

// NewCataloger builds a Cataloger over store.
func NewCataloger(store Store, logger *slog.Logger) *Cataloger {
	return &Cataloger{
		store:       store,
		fingerprint: fingerprint.File,
		now:         time.Now,
		logger:      logging.NewComponentLogger(logger, "volume"),
	}
}

// Catalog registers the volume, reusing an existing label/number pair, then
// records every matching file under the mount path. Files that cannot be
// hashed are counted and skipped; store failures abort.
func (c *Cataloger) Catalog(ctx context.Context, req Request) (Result, error) {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return Result{}, services.Wrap(services.ErrValidation, "volume", "catalog", "Volume label is required", nil)
	}
	if req.HumanNumber < 0 {
		return Result{}, services.Wrap(services.ErrValidation, "volume", "catalog",
			fmt.Sprintf("Invalid volume number %d", req.HumanNumber), nil)
	}

	vol, created, err := c.store.RegisterVolume(ctx, catalog.Volume{
		Label:       label,
		HumanNumber: req.HumanNumber,
		Notes:       req.Notes,
		DateAdded:   c.now(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("register volume: %w", err)
	}
	logger := c.logger.With(logging.String("volume_label", vol.Label), logging.Int("human_number", vol.HumanNumber))
	if created {
		logger.Info("volume registered", logging.Int64("volume_id", vol.ID))
	} else {
		logger.Info("volume already registered", logging.Int64("volume_id", vol.ID))
	}

	result := Result{Volume: vol, Created: created}
	if strings.TrimSpace(req.MountPath) == "" {
		return result, nil
	}

	root := filepath.Clean(req.MountPath)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Debug("skipping unreadable entry", logging.Path(path), logging.Error(err))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !d.Type().IsRegular() || !accepts(req.Extensions, d.Name()) {
			return nil
		}

		sum, err := c.fingerprint(ctx, path)
		if err != nil {
			result.Failed++
			logging.WarnWithContext(logger, "volume file fingerprint failed", "volume_fingerprint_failed",
				logging.Path(path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the disc surface or re-run the register"),
				logging.String(logging.FieldImpact, "file missing from the volume catalog"),
			)
			return nil
		}

		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			rel = filepath.Dir(path)
		}
		var upload time.Time
		if info, infoErr := d.Info(); infoErr == nil {
			upload = info.ModTime()
		}
		inserted, err := c.store.AddVolumeFile(ctx, catalog.VolumeFile{
			VolumeID:   vol.ID,
			FileName:   d.Name(),
			Path:       filepath.ToSlash(rel),
			Checksum:   sum,
			UploadDate: upload,
		})
		if err != nil {
			return fmt.Errorf("add volume file %s: %w", path, err)
		}
		if inserted {
			result.Added++
		} else {
			result.Skipped++
		}
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, fs.ErrNotExist) {
			return result, services.Wrap(services.ErrNotFound, "volume", "walk mount",
				"Mount path "+root+" does not exist", walkErr)
		}
		return result, walkErr
	}

	logger.Info("volume cataloged",
		logging.Int("added", result.Added),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

func accepts(extensions map[string]struct{}, name string) bool {
	if len(extensions) == 0 {
		return true
	}
	_, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}
