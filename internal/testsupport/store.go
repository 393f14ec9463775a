package testsupport

import (
	"context"
	"testing"
	"time"

	"mediashelf/internal/catalog"
	"mediashelf/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustRegister inserts a media record with its placement for tests.
func MustRegister(t testing.TB, store *catalog.Store, fileID, checksum string, checkin time.Time) catalog.MediaRecord {
	t.Helper()

	title := "title " + fileID
	rec := catalog.MediaRecord{
		FileID:           fileID,
		Title:            &title,
		OriginalFilename: fileID + ".mp4",
		Checksum:         checksum,
		CheckinTime:      checkin,
		OnLocalDisk:      true,
	}
	place := catalog.PlacementRecord{FileID: fileID, FolderPath: "/archive", FileName: fileID + ".mp4"}
	if err := store.Register(context.Background(), rec, place); err != nil {
		t.Fatalf("store.Register: %v", err)
	}
	return rec
}
