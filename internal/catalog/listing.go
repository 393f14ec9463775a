package catalog

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
)

func listingBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select("m.file_id", "m.title", "e.thumbnail", "m.checkin_time", "p.folder_path", "p.file_name").
		From("media_records m").
		Join("placement_records p ON p.file_id = m.file_id").
		LeftJoin("playlist_entries e ON e.file_id = m.file_id").
		OrderBy("m.checkin_time DESC", "m.file_id DESC")
}

// Listing returns the joined media/placement/playlist view, newest first.
func (s *Store) Listing(ctx context.Context, q ListingQuery) ([]ListingEntry, error) {
	builder := listingBuilder()
	if title := strings.TrimSpace(q.Title); title != "" {
		builder = builder.Where("instr(lower(m.title), lower(?)) > 0", title)
	}
	if q.Limit > 0 {
		builder = builder.Limit(uint64(q.Limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, classify("build listing query", err)
	}

	var out []ListingEntry
	err = retryOnBusy(ctx, func() error {
		out = out[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				entry      ListingEntry
				title      sql.NullString
				thumbnail  sql.NullString
				checkinRaw string
				folder     string
				name       string
			)
			if err := rows.Scan(&entry.FileID, &title, &thumbnail, &checkinRaw, &folder, &name); err != nil {
				return err
			}
			entry.Title = optionalString(title)
			entry.Thumbnail = optionalString(thumbnail)
			entry.CheckinTime = parseTime(checkinRaw)
			entry.Path = filepath.Join(folder, name)
			out = append(out, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, classify("listing", err)
	}
	return out, nil
}
