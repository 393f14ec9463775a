package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const defaultPlayedTime = "00:00:00"

// AttachPlaylist creates the playlist entry for a registered record. The
// media record itself is never modified.
func (s *Store) AttachPlaylist(ctx context.Context, entry PlaylistEntry) error {
	if strings.TrimSpace(entry.FileID) == "" {
		return fmt.Errorf("%w: playlist file id is required", ErrConstraintViolation)
	}
	if entry.PlayedTime == "" {
		entry.PlayedTime = defaultPlayedTime
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO playlist_entries (file_id, title, thumbnail, played_time, play_count, favorite, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			entry.FileID,
			nullableString(entry.Title),
			entry.Thumbnail,
			entry.PlayedTime,
			entry.PlayCount,
			boolToInt(entry.Favorite),
			formatTime(entry.CreatedAt),
		)
		return err
	})
	return classify("attach playlist", err)
}
