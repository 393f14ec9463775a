// Package playlist attaches newly checked-in media to the playlist by
// generating a thumbnail and inserting a playlist entry for each record that
// lacks one.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mediashelf/internal/catalog"
	"mediashelf/internal/logging"
	"mediashelf/internal/services"
)

// Store is the catalog surface used by Sync.
type Store interface {
	UnregisteredMediaRecords(ctx context.Context) ([]catalog.Unregistered, error)
	AttachPlaylist(ctx context.Context, entry catalog.PlaylistEntry) error
}

// Thumbnailer creates a thumbnail for an archived file.
type Thumbnailer interface {
	Create(ctx context.Context, path string, checkinTime time.Time) (string, error)
}

// Result summarises one Sync pass.
type Result struct {
	Pending  int
	Attached int
	Failed   int
}

// Syncer attaches unregistered records.
type Syncer struct {
	store  Store
	thumbs Thumbnailer
	now    func() time.Time
	logger *slog.Logger
}

// NewSyncer builds a Syncer. thumbs may be nil, in which case entries are
// attached without a thumbnail.
func NewSyncer(store Store, thumbs Thumbnailer, logger *slog.Logger) *Syncer {
	return &Syncer{
		store:  store,
		thumbs: thumbs,
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "playlist"),
	}
}

// Sync processes every unregistered record. Per-record failures are logged
// and counted; only a failure to list pending records is returned.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	pending, err := s.store.UnregisteredMediaRecords(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list unregistered: %w", err)
	}

	result := Result{Pending: len(pending)}
	for _, item := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.attach(ctx, item); err != nil {
			result.Failed++
			if errors.Is(err, catalog.ErrUnavailable) {
				return result, err
			}
			continue
		}
		result.Attached++
	}

	s.logger.Info("playlist sync finished",
		logging.Int("pending", result.Pending),
		logging.Int("attached", result.Attached),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Syncer) attach(ctx context.Context, item catalog.Unregistered) error {
	ctx = services.WithFileID(ctx, item.FileID)
	logger := logging.WithContext(ctx, s.logger)
	path := item.Placement.Path()

	var thumb string
	if s.thumbs != nil {
		created, err := s.thumbs.Create(ctx, path, item.CheckinTime)
		if err != nil {
			logging.WarnWithContext(logger, "thumbnail failed; record left pending", "thumbnail_failed",
				logging.Path(path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check ffmpeg is installed and the archived file is readable"),
				logging.String(logging.FieldImpact, "record stays off the playlist until the next sync"),
			)
			return err
		}
		thumb = created
	}

	entry := catalog.PlaylistEntry{
		FileID:    item.FileID,
		Title:     item.Title,
		Thumbnail: thumb,
		CreatedAt: s.now(),
	}
	if err := s.store.AttachPlaylist(ctx, entry); err != nil {
		logging.WarnWithContext(logger, "playlist attach failed", "playlist_attach_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "another sync may have attached the record already"),
			logging.String(logging.FieldImpact, "record stays off the playlist until the next sync"),
		)
		return err
	}
	logger.Debug("playlist entry attached", logging.String("thumbnail", thumb))
	return nil
}
