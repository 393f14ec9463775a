package catalog

import (
	"path/filepath"
	"time"
)

// MediaRecord is one physically distinct media file. Optional metadata is nil
// when absent.
type MediaRecord struct {
	FileID           string
	Title            *string
	Author           *string
	PublishDate      *string
	OriginalFilename string
	Checksum         string
	CheckinTime      time.Time
	OnLocalDisk      bool
	OnRemovableMedia bool
}

// PlacementRecord is the current on-disk location of a MediaRecord.
type PlacementRecord struct {
	FileID     string
	FolderPath string
	FileName   string
}

// Path joins the folder and file name.
func (p PlacementRecord) Path() string {
	return filepath.Join(p.FolderPath, p.FileName)
}

// Unregistered is a media record that has no playlist entry yet, joined with
// its placement.
type Unregistered struct {
	FileID      string
	Title       *string
	CheckinTime time.Time
	Placement   PlacementRecord
}

// PlaylistEntry attaches playback state to a media record.
type PlaylistEntry struct {
	FileID     string
	Title      *string
	Thumbnail  string
	PlayedTime string
	PlayCount  int
	Favorite   bool
	CreatedAt  time.Time
}

// ListingQuery filters Listing results.
type ListingQuery struct {
	// Title matches case-insensitively as a substring when non-empty.
	Title string
	// Limit caps the result size; zero means no limit.
	Limit int
}

// ListingEntry is one row of the joined catalog view.
type ListingEntry struct {
	FileID      string
	Title       *string
	Thumbnail   *string
	CheckinTime time.Time
	Path        string
}

// Volume is a removable disc identified by label and human number.
type Volume struct {
	ID          int64
	Label       string
	HumanNumber int
	DateAdded   time.Time
	Notes       string
	WriteCount  int
}

// VolumeFile is one file found on a cataloged volume.
type VolumeFile struct {
	VolumeID   int64
	FileName   string
	Path       string
	Checksum   string
	UploadDate time.Time
}
