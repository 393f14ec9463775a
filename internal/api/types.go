package api

import "mediashelf/internal/catalog"

// Video is one entry in the listing response.
type Video struct {
	FileID    string  `json:"file_id"`
	Title     *string `json:"title"`
	Thumbnail *string `json:"thumbnail"`
}

// Health is the /api/health payload.
type Health struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// FromListing converts catalog entries to the wire format.
func FromListing(entries []catalog.ListingEntry) []Video {
	out := make([]Video, 0, len(entries))
	for _, entry := range entries {
		out = append(out, Video{
			FileID:    entry.FileID,
			Title:     entry.Title,
			Thumbnail: entry.Thumbnail,
		})
	}
	return out
}
