package catalog_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"mediashelf/internal/catalog"
	"mediashelf/internal/services"
	"mediashelf/internal/testsupport"
)

var baseTime = time.Date(2024, time.May, 21, 13, 45, 7, 123_000_000, time.UTC)

func ptr(s string) *string { return &s }

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := catalog.OpenPath(cfg.Paths.DatabasePath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if reopened.Path() != cfg.Paths.DatabasePath {
		t.Fatalf("unexpected path %q", reopened.Path())
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "videos.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("CREATE TABLE schema_version (version INTEGER NOT NULL); INSERT INTO schema_version (version) VALUES (99);"); err != nil {
		t.Fatalf("seed schema: %v", err)
	}
	db.Close()

	_, err = catalog.OpenPath(path)
	if !errors.Is(err, catalog.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOpenUnwritableLocation(t *testing.T) {
	blocker := testsupport.WriteContent(t, filepath.Join(t.TempDir(), "file"), "x")
	_, err := catalog.OpenPath(filepath.Join(blocker, "nested", "videos.db"))
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRegisterAndLookup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	rec := catalog.MediaRecord{
		FileID:           "5janz1kpshf",
		Title:            ptr("FooBar"),
		Author:           ptr("Display@handle"),
		PublishDate:      ptr("20240521"),
		OriginalFilename: "FooBar(Display@handle,20240521).mp4",
		Checksum:         "abc123",
		CheckinTime:      baseTime,
		OnLocalDisk:      true,
	}
	place := catalog.PlacementRecord{FileID: rec.FileID, FolderPath: "/archive/2024/05/21", FileName: "5janz1kpshf.mp4"}
	if err := store.Register(ctx, rec, place); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := store.LookupByChecksum(ctx, "abc123")
	if err != nil {
		t.Fatalf("LookupByChecksum: %v", err)
	}
	if got == nil || got.FileID != rec.FileID {
		t.Fatalf("unexpected lookup result %+v", got)
	}
	if got.Author == nil || *got.Author != "Display@handle" {
		t.Fatalf("unexpected author %v", got.Author)
	}
	if !got.CheckinTime.Equal(baseTime) {
		t.Fatalf("unexpected checkin time %v", got.CheckinTime)
	}
	if !got.OnLocalDisk || got.OnRemovableMedia {
		t.Fatalf("unexpected storage flags %+v", got)
	}

	gotPlace, err := store.Placement(ctx, rec.FileID)
	if err != nil || gotPlace == nil {
		t.Fatalf("Placement: %v %v", gotPlace, err)
	}
	if gotPlace.Path() != "/archive/2024/05/21/5janz1kpshf.mp4" {
		t.Fatalf("unexpected placement path %q", gotPlace.Path())
	}

	missing, err := store.LookupByChecksum(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected absent record, got %v %v", missing, err)
	}
}

func TestRegisterKeepsNullMetadata(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	rec := catalog.MediaRecord{FileID: "id1", OriginalFilename: "plain.mp4", Checksum: "c1", CheckinTime: baseTime}
	if err := store.Register(ctx, rec, catalog.PlacementRecord{FileID: "id1", FolderPath: "/a", FileName: "id1.mp4"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, err := store.GetByID(ctx, "id1")
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v %v", got, err)
	}
	if got.Title != nil || got.Author != nil || got.PublishDate != nil {
		t.Fatalf("expected nil metadata, got %+v", got)
	}
}

func TestLookupRejectsEmptyChecksum(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	_, err := store.LookupByChecksum(context.Background(), " ")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if errors.Is(err, catalog.ErrConstraintViolation) {
		t.Fatalf("empty lookup key must not read as a rejected insert: %v", err)
	}
}

func TestRegisterDuplicateChecksumIsAtomic(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustRegister(t, store, "first", "same", baseTime)

	rec := catalog.MediaRecord{FileID: "second", OriginalFilename: "b.mp4", Checksum: "same", CheckinTime: baseTime}
	err := store.Register(ctx, rec, catalog.PlacementRecord{FileID: "second", FolderPath: "/a", FileName: "second.mp4"})
	if !errors.Is(err, catalog.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
	if got, _ := store.GetByID(ctx, "second"); got != nil {
		t.Fatalf("expected no partial record, got %+v", got)
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Fatalf("expected one record, got %d", n)
	}
}

func TestRegisterDuplicateFileID(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.MustRegister(t, store, "dup", "c1", baseTime)
	rec := catalog.MediaRecord{FileID: "dup", OriginalFilename: "b.mp4", Checksum: "c2", CheckinTime: baseTime}
	err := store.Register(context.Background(), rec, catalog.PlacementRecord{FileID: "dup", FolderPath: "/a", FileName: "dup.mp4"})
	if !errors.Is(err, catalog.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
	if got, _ := store.LookupByChecksum(context.Background(), "c2"); got != nil {
		t.Fatalf("expected no row for rejected checksum, got %+v", got)
	}
}

func TestRegisterValidation(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	cases := []struct {
		name  string
		rec   catalog.MediaRecord
		place catalog.PlacementRecord
	}{
		{"empty checksum", catalog.MediaRecord{FileID: "a", CheckinTime: baseTime}, catalog.PlacementRecord{FileID: "a", FolderPath: "/x", FileName: "a"}},
		{"mismatched placement", catalog.MediaRecord{FileID: "a", Checksum: "c", CheckinTime: baseTime}, catalog.PlacementRecord{FileID: "b", FolderPath: "/x", FileName: "b"}},
		{"missing time", catalog.MediaRecord{FileID: "a", Checksum: "c"}, catalog.PlacementRecord{FileID: "a", FolderPath: "/x", FileName: "a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := store.Register(context.Background(), tc.rec, tc.place); !errors.Is(err, catalog.ErrConstraintViolation) {
				t.Fatalf("expected ErrConstraintViolation, got %v", err)
			}
		})
	}
}

func TestUnregisteredAndAttachPlaylist(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustRegister(t, store, "b", "c2", baseTime.Add(time.Minute))
	testsupport.MustRegister(t, store, "a", "c1", baseTime)

	pending, err := store.UnregisteredMediaRecords(ctx)
	if err != nil {
		t.Fatalf("UnregisteredMediaRecords: %v", err)
	}
	if len(pending) != 2 || pending[0].FileID != "a" || pending[1].FileID != "b" {
		t.Fatalf("unexpected pending records %+v", pending)
	}
	if pending[0].Placement.Path() != "/archive/a.mp4" {
		t.Fatalf("unexpected placement %+v", pending[0].Placement)
	}

	if err := store.AttachPlaylist(ctx, catalog.PlaylistEntry{FileID: "a", Title: pending[0].Title, Thumbnail: "/thumb/a.png"}); err != nil {
		t.Fatalf("AttachPlaylist: %v", err)
	}
	pending, err = store.UnregisteredMediaRecords(ctx)
	if err != nil {
		t.Fatalf("UnregisteredMediaRecords: %v", err)
	}
	if len(pending) != 1 || pending[0].FileID != "b" {
		t.Fatalf("expected only b pending, got %+v", pending)
	}

	if err := store.AttachPlaylist(ctx, catalog.PlaylistEntry{FileID: "a"}); !errors.Is(err, catalog.ErrConstraintViolation) {
		t.Fatalf("expected duplicate attach to violate constraint, got %v", err)
	}
	if err := store.AttachPlaylist(ctx, catalog.PlaylistEntry{FileID: "ghost"}); !errors.Is(err, catalog.ErrConstraintViolation) {
		t.Fatalf("expected foreign key violation, got %v", err)
	}
}

func TestListing(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustRegister(t, store, "old", "c1", baseTime)
	testsupport.MustRegister(t, store, "new", "c2", baseTime.Add(time.Hour))
	if err := store.AttachPlaylist(ctx, catalog.PlaylistEntry{FileID: "old", Thumbnail: "/t/old.png"}); err != nil {
		t.Fatalf("AttachPlaylist: %v", err)
	}

	all, err := store.Listing(ctx, catalog.ListingQuery{})
	if err != nil {
		t.Fatalf("Listing: %v", err)
	}
	if len(all) != 2 || all[0].FileID != "new" || all[1].FileID != "old" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if all[0].Thumbnail != nil {
		t.Fatalf("expected nil thumbnail for unattached record, got %v", *all[0].Thumbnail)
	}
	if all[1].Thumbnail == nil || *all[1].Thumbnail != "/t/old.png" {
		t.Fatalf("unexpected thumbnail %v", all[1].Thumbnail)
	}

	filtered, err := store.Listing(ctx, catalog.ListingQuery{Title: "TITLE OLD"})
	if err != nil {
		t.Fatalf("Listing filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].FileID != "old" {
		t.Fatalf("unexpected filtered listing %+v", filtered)
	}

	limited, err := store.Listing(ctx, catalog.ListingQuery{Limit: 1})
	if err != nil {
		t.Fatalf("Listing limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected one row, got %d", len(limited))
	}
}

func TestRegisterVolumeReusesExisting(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, created, err := store.RegisterVolume(ctx, catalog.Volume{Label: "BD_2024_01", HumanNumber: 1, Notes: "first burn"})
	if err != nil || !created {
		t.Fatalf("RegisterVolume: %+v created=%v err=%v", first, created, err)
	}
	again, created, err := store.RegisterVolume(ctx, catalog.Volume{Label: "BD_2024_01", HumanNumber: 1})
	if err != nil {
		t.Fatalf("RegisterVolume again: %v", err)
	}
	if created || again.ID != first.ID || again.Notes != "first burn" {
		t.Fatalf("expected existing volume reused, got %+v created=%v", again, created)
	}

	inserted, err := store.AddVolumeFile(ctx, catalog.VolumeFile{VolumeID: first.ID, FileName: "a.mp4", Path: "/", Checksum: "c"})
	if err != nil || !inserted {
		t.Fatalf("AddVolumeFile: %v %v", inserted, err)
	}
	inserted, err = store.AddVolumeFile(ctx, catalog.VolumeFile{VolumeID: first.ID, FileName: "a.mp4", Path: "/", Checksum: "c"})
	if err != nil || inserted {
		t.Fatalf("expected duplicate volume file ignored, got %v %v", inserted, err)
	}
	files, err := store.VolumeFiles(ctx, first.ID)
	if err != nil || len(files) != 1 {
		t.Fatalf("VolumeFiles: %+v %v", files, err)
	}
}
