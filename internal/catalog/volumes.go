package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RegisterVolume inserts a volume, or returns the existing row when the
// label/number pair is already known. created reports which happened.
func (s *Store) RegisterVolume(ctx context.Context, v Volume) (Volume, bool, error) {
	v.Label = strings.TrimSpace(v.Label)
	if v.Label == "" {
		return Volume{}, false, fmt.Errorf("%w: volume label is required", ErrConstraintViolation)
	}
	if v.DateAdded.IsZero() {
		v.DateAdded = time.Now()
	}
	if v.WriteCount <= 0 {
		v.WriteCount = 1
	}

	var id int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO volumes (volume_label, human_number, date_added, notes, write_count)
			VALUES (?, ?, ?, ?, ?)`,
			v.Label, v.HumanNumber, formatTime(v.DateAdded), v.Notes, v.WriteCount,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err == nil {
		v.ID = id
		return v, true, nil
	}
	if !isConstraint(err) {
		return Volume{}, false, classify("register volume", err)
	}

	existing, lookupErr := s.volumeByLabel(ctx, v.Label, v.HumanNumber)
	if lookupErr != nil {
		return Volume{}, false, lookupErr
	}
	if existing == nil {
		return Volume{}, false, classify("register volume", err)
	}
	return *existing, false, nil
}

func (s *Store) volumeByLabel(ctx context.Context, label string, number int) (*Volume, error) {
	var (
		v        Volume
		dateRaw  string
		notesRaw sql.NullString
	)
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, `
			SELECT volume_id, volume_label, human_number, date_added, notes, write_count
			FROM volumes WHERE volume_label = ? AND human_number = ?`, label, number,
		).Scan(&v.ID, &v.Label, &v.HumanNumber, &dateRaw, &notesRaw, &v.WriteCount)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("lookup volume", err)
	}
	v.DateAdded = parseTime(dateRaw)
	v.Notes = notesRaw.String
	return &v, nil
}

// AddVolumeFile records a file found on a volume. Files already recorded for
// the same volume and path are ignored; inserted reports which happened.
func (s *Store) AddVolumeFile(ctx context.Context, f VolumeFile) (bool, error) {
	if f.VolumeID <= 0 || strings.TrimSpace(f.FileName) == "" {
		return false, fmt.Errorf("%w: volume id and file name are required", ErrConstraintViolation)
	}
	var affected int64
	err := retryOnBusy(ctx, func() error {
		var upload any
		if !f.UploadDate.IsZero() {
			upload = formatTime(f.UploadDate)
		}
		res, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO volume_files (volume_id, file_name, path, checksum, upload_date)
			VALUES (?, ?, ?, ?, ?)`,
			f.VolumeID, f.FileName, f.Path, f.Checksum, upload,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, classify("add volume file", err)
	}
	return affected > 0, nil
}

// VolumeFiles lists the files recorded for a volume ordered by path.
func (s *Store) VolumeFiles(ctx context.Context, volumeID int64) ([]VolumeFile, error) {
	var out []VolumeFile
	err := retryOnBusy(ctx, func() error {
		out = out[:0]
		rows, err := s.db.QueryContext(ctx, `
			SELECT volume_id, file_name, path, checksum, upload_date
			FROM volume_files WHERE volume_id = ? ORDER BY path, file_name`, volumeID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				f        VolumeFile
				checksum sql.NullString
				upload   sql.NullString
			)
			if err := rows.Scan(&f.VolumeID, &f.FileName, &f.Path, &checksum, &upload); err != nil {
				return err
			}
			f.Checksum = checksum.String
			f.UploadDate = parseTime(upload.String)
			out = append(out, f)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, classify("list volume files", err)
	}
	return out, nil
}
