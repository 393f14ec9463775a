package placement

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"mediashelf/internal/logging"
	"mediashelf/internal/services"
	"mediashelf/internal/testsupport"
)

var checkinTime = time.Date(2024, time.May, 21, 13, 45, 7, 0, time.UTC)

func newRequest(t *testing.T, name, content string) (Request, string) {
	t.Helper()
	base := t.TempDir()
	src := testsupport.WriteContent(t, filepath.Join(base, "checkin", name), content)
	return Request{
		Source:      src,
		ArchiveRoot: filepath.Join(base, "media"),
		FileID:      "5janz1kpshf",
		CheckinTime: checkinTime,
		Policy:      PolicyDisambiguate,
	}, base
}

func TestPlaceMovesIntoDatePartition(t *testing.T) {
	req, base := newRequest(t, "Foo(bar@x,20240101).MKV", "payload")
	engine := NewEngine(logging.NewNop())

	got, err := engine.Place(context.Background(), req)
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	wantDir := filepath.Join(base, "media", "2024", "05", "21")
	if got.Dir != wantDir {
		t.Fatalf("unexpected dir: got %q want %q", got.Dir, wantDir)
	}
	if got.FileName != "5janz1kpshf.MKV" {
		t.Fatalf("expected extension preserved verbatim, got %q", got.FileName)
	}
	if got.Destination != filepath.Join(wantDir, got.FileName) {
		t.Fatalf("unexpected destination %q", got.Destination)
	}
	if _, err := os.Stat(req.Source); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, stat err=%v", err)
	}
	data, err := os.ReadFile(got.Destination)
	if err != nil || string(data) != "payload" {
		t.Fatalf("unexpected destination content %q (%v)", data, err)
	}
}

func TestPlaceDisambiguatesCollisions(t *testing.T) {
	req, _ := newRequest(t, "a.mp4", "new")
	dir := DatePartition(req.ArchiveRoot, req.CheckinTime)
	testsupport.WriteContent(t, filepath.Join(dir, "5janz1kpshf.mp4"), "old")
	testsupport.WriteContent(t, filepath.Join(dir, "5janz1kpshf_1.mp4"), "older")

	got, err := NewEngine(nil).Place(context.Background(), req)
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	if got.FileName != "5janz1kpshf_2.mp4" {
		t.Fatalf("expected _2 suffix, got %q", got.FileName)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "5janz1kpshf.mp4")); string(data) != "old" {
		t.Fatalf("existing file must not be overwritten, got %q", data)
	}
}

func TestPlaceFailPolicy(t *testing.T) {
	req, _ := newRequest(t, "a.mp4", "new")
	req.Policy = PolicyFail
	dir := DatePartition(req.ArchiveRoot, req.CheckinTime)
	testsupport.WriteContent(t, filepath.Join(dir, "5janz1kpshf.mp4"), "old")

	_, err := NewEngine(nil).Place(context.Background(), req)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if _, statErr := os.Stat(req.Source); statErr != nil {
		t.Fatalf("source must stay in place on collision: %v", statErr)
	}
}

func TestPlaceValidatesRequest(t *testing.T) {
	req, _ := newRequest(t, "a.mp4", "x")
	req.FileID = ""
	if _, err := NewEngine(nil).Place(context.Background(), req); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	req.FileID = "id"
	req.Policy = "overwrite"
	if _, err := NewEngine(nil).Place(context.Background(), req); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for policy, got %v", err)
	}
}

func TestPlaceMissingSource(t *testing.T) {
	req, _ := newRequest(t, "a.mp4", "x")
	if err := os.Remove(req.Source); err != nil {
		t.Fatal(err)
	}
	_, err := NewEngine(nil).Place(context.Background(), req)
	if err == nil || errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected move failure, got %v", err)
	}
}

func TestPlaceCrossDeviceFallsBackToCopy(t *testing.T) {
	original := renameNoReplace
	t.Cleanup(func() { renameNoReplace = original })
	renameNoReplace = func(src, dst string) error {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: unix.EXDEV}
	}

	req, _ := newRequest(t, "a.webm", "cross device payload")
	got, err := NewEngine(nil).Place(context.Background(), req)
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	if _, err := os.Stat(req.Source); !os.IsNotExist(err) {
		t.Fatalf("expected source removed after copy, stat err=%v", err)
	}
	data, err := os.ReadFile(got.Destination)
	if err != nil || string(data) != "cross device payload" {
		t.Fatalf("unexpected destination content %q (%v)", data, err)
	}

	if err := NewEngine(nil).MoveBack(context.Background(), got); err != nil {
		t.Fatalf("MoveBack across devices returned error: %v", err)
	}
	if _, err := os.Stat(req.Source); err != nil {
		t.Fatalf("expected source restored: %v", err)
	}
}

func TestCrossDeviceCollisionDisambiguates(t *testing.T) {
	original := renameNoReplace
	t.Cleanup(func() { renameNoReplace = original })
	renameNoReplace = func(src, dst string) error {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: unix.EXDEV}
	}

	req, _ := newRequest(t, "a.mp4", "new")
	dir := DatePartition(req.ArchiveRoot, req.CheckinTime)
	testsupport.WriteContent(t, filepath.Join(dir, "5janz1kpshf.mp4"), "old")

	got, err := NewEngine(nil).Place(context.Background(), req)
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	if got.FileName != "5janz1kpshf_1.mp4" {
		t.Fatalf("expected _1 suffix, got %q", got.FileName)
	}
}

func TestMoveBackRestoresExactPath(t *testing.T) {
	req, _ := newRequest(t, "Talk (x@y,20240101).mp4", "payload")
	engine := NewEngine(nil)
	got, err := engine.Place(context.Background(), req)
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	if err := engine.MoveBack(context.Background(), got); err != nil {
		t.Fatalf("MoveBack returned error: %v", err)
	}
	data, err := os.ReadFile(req.Source)
	if err != nil || string(data) != "payload" {
		t.Fatalf("expected original restored, got %q (%v)", data, err)
	}
	if _, err := os.Stat(got.Destination); !os.IsNotExist(err) {
		t.Fatalf("expected destination removed, stat err=%v", err)
	}
}

func TestMoveBackRefusesToOverwriteSource(t *testing.T) {
	req, _ := newRequest(t, "a.mp4", "payload")
	engine := NewEngine(nil)
	got, err := engine.Place(context.Background(), req)
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	testsupport.WriteContent(t, req.Source, "newcomer")

	if err := engine.MoveBack(context.Background(), got); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if data, _ := os.ReadFile(req.Source); string(data) != "newcomer" {
		t.Fatalf("source must not be overwritten, got %q", data)
	}
	if _, err := os.Stat(got.Destination); err != nil {
		t.Fatalf("archived copy must remain: %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(" FAIL "); err != nil || p != PolicyFail {
		t.Fatalf("unexpected result %q %v", p, err)
	}
	if p, err := ParsePolicy(""); err != nil || p != PolicyDisambiguate {
		t.Fatalf("unexpected default %q %v", p, err)
	}
	if _, err := ParsePolicy("clobber"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
