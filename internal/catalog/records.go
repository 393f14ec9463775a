package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"mediashelf/internal/services"
)

const mediaColumns = "file_id, title, author, publish_date, original_filename, checksum, checkin_time, on_local_disk, on_removable_media"

func scanMedia(scanner interface{ Scan(dest ...any) error }) (*MediaRecord, error) {
	var (
		rec         MediaRecord
		title       sql.NullString
		author      sql.NullString
		publishDate sql.NullString
		checkinRaw  string
		localDisk   int
		removable   int
	)
	if err := scanner.Scan(
		&rec.FileID,
		&title,
		&author,
		&publishDate,
		&rec.OriginalFilename,
		&rec.Checksum,
		&checkinRaw,
		&localDisk,
		&removable,
	); err != nil {
		return nil, err
	}
	rec.Title = optionalString(title)
	rec.Author = optionalString(author)
	rec.PublishDate = optionalString(publishDate)
	rec.CheckinTime = parseTime(checkinRaw)
	rec.OnLocalDisk = localDisk != 0
	rec.OnRemovableMedia = removable != 0
	return &rec, nil
}

// LookupByChecksum returns the record holding hash, or nil when none does.
// An empty hash is never a valid key.
func (s *Store) LookupByChecksum(ctx context.Context, hash string) (*MediaRecord, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "lookup by checksum",
			"empty checksum is not a lookup key", nil)
	}
	var rec *MediaRecord
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, "SELECT "+mediaColumns+" FROM media_records WHERE checksum = ?", hash)
		var scanErr error
		rec, scanErr = scanMedia(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("lookup by checksum", err)
	}
	return rec, nil
}

// GetByID fetches a record by file id, returning nil when absent.
func (s *Store) GetByID(ctx context.Context, fileID string) (*MediaRecord, error) {
	var rec *MediaRecord
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, "SELECT "+mediaColumns+" FROM media_records WHERE file_id = ?", fileID)
		var scanErr error
		rec, scanErr = scanMedia(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get by id", err)
	}
	return rec, nil
}

// Placement returns the placement row for fileID, or nil when absent.
func (s *Store) Placement(ctx context.Context, fileID string) (*PlacementRecord, error) {
	var rec PlacementRecord
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT file_id, folder_path, file_name FROM placement_records WHERE file_id = ?", fileID,
		).Scan(&rec.FileID, &rec.FolderPath, &rec.FileName)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get placement", err)
	}
	return &rec, nil
}

// Count returns the number of registered media records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM media_records").Scan(&n)
	})
	if err != nil {
		return 0, classify("count", err)
	}
	return n, nil
}

// Register inserts rec and place as one unit of work. Either both rows exist
// afterwards or neither does.
func (s *Store) Register(ctx context.Context, rec MediaRecord, place PlacementRecord) error {
	if err := validateRegistration(rec, place); err != nil {
		return err
	}
	err := retryOnBusy(ctx, func() error {
		return s.registerTx(ctx, rec, place)
	})
	return classify("register", err)
}

func (s *Store) registerTx(ctx context.Context, rec MediaRecord, place PlacementRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO media_records (`+mediaColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.FileID,
		nullableString(rec.Title),
		nullableString(rec.Author),
		nullableString(rec.PublishDate),
		rec.OriginalFilename,
		rec.Checksum,
		formatTime(rec.CheckinTime),
		boolToInt(rec.OnLocalDisk),
		boolToInt(rec.OnRemovableMedia),
	); err != nil {
		return fmt.Errorf("insert media record: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO placement_records (file_id, folder_path, file_name) VALUES (?, ?, ?)`,
		place.FileID, place.FolderPath, place.FileName,
	); err != nil {
		return fmt.Errorf("insert placement record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit register tx: %w", err)
	}
	return nil
}

func validateRegistration(rec MediaRecord, place PlacementRecord) error {
	switch {
	case strings.TrimSpace(rec.FileID) == "":
		return fmt.Errorf("%w: file id is required", ErrConstraintViolation)
	case strings.TrimSpace(rec.Checksum) == "":
		return fmt.Errorf("%w: checksum is required", ErrConstraintViolation)
	case rec.CheckinTime.IsZero():
		return fmt.Errorf("%w: check-in time is required", ErrConstraintViolation)
	case place.FileID != rec.FileID:
		return fmt.Errorf("%w: placement file id %q does not match record %q", ErrConstraintViolation, place.FileID, rec.FileID)
	case strings.TrimSpace(place.FolderPath) == "" || strings.TrimSpace(place.FileName) == "":
		return fmt.Errorf("%w: placement path is required", ErrConstraintViolation)
	}
	return nil
}

// UnregisteredMediaRecords lists records that have no playlist entry, oldest
// first.
func (s *Store) UnregisteredMediaRecords(ctx context.Context) ([]Unregistered, error) {
	var out []Unregistered
	err := retryOnBusy(ctx, func() error {
		out = out[:0]
		rows, err := s.db.QueryContext(ctx, `
			SELECT m.file_id, m.title, m.checkin_time, p.folder_path, p.file_name
			FROM media_records m
			JOIN placement_records p ON p.file_id = m.file_id
			LEFT JOIN playlist_entries e ON e.file_id = m.file_id
			WHERE e.file_id IS NULL
			ORDER BY m.checkin_time, m.file_id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				item       Unregistered
				title      sql.NullString
				checkinRaw string
			)
			if err := rows.Scan(&item.FileID, &title, &checkinRaw, &item.Placement.FolderPath, &item.Placement.FileName); err != nil {
				return err
			}
			item.Title = optionalString(title)
			item.CheckinTime = parseTime(checkinRaw)
			item.Placement.FileID = item.FileID
			out = append(out, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, classify("list unregistered", err)
	}
	return out, nil
}
