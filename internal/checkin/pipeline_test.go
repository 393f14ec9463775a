package checkin_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mediashelf/internal/catalog"
	"mediashelf/internal/checkin"
	"mediashelf/internal/config"
	"mediashelf/internal/fileid"
	"mediashelf/internal/logging"
	"mediashelf/internal/placement"
	"mediashelf/internal/testsupport"
)

var fixedNow = time.Date(2024, time.May, 21, 13, 45, 7, 123_000_000, time.UTC)

type harness struct {
	cfg      *config.Config
	store    *catalog.Store
	engine   *placement.Engine
	pipeline *checkin.Pipeline
}

func newHarness(t *testing.T, store checkin.Store, mover checkin.Mover, mutate func(*checkin.Options)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	realStore := testsupport.MustOpenStore(t, cfg)
	engine := placement.NewEngine(logging.NewNop())
	if store == nil {
		store = realStore
	}
	if mover == nil {
		mover = engine
	}
	opts, err := checkin.OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	opts.Now = func() time.Time { return fixedNow }
	if mutate != nil {
		mutate(&opts)
	}
	return &harness{
		cfg:      cfg,
		store:    realStore,
		engine:   engine,
		pipeline: checkin.New(store, mover, opts, logging.NewNop()),
	}
}

func (h *harness) inbox(t *testing.T, name, content string) string {
	t.Helper()
	return testsupport.WriteContent(t, filepath.Join(h.cfg.Paths.InboxDir, name), content)
}

type failingRegisterStore struct {
	*catalog.Store
	err error
}

func (s failingRegisterStore) Register(context.Context, catalog.MediaRecord, catalog.PlacementRecord) error {
	return s.err
}

type failingPingStore struct{ *catalog.Store }

func (failingPingStore) Ping(context.Context) error {
	return catalog.ErrUnavailable
}

type stuckMover struct{ *placement.Engine }

func (stuckMover) MoveBack(context.Context, placement.Placement) error {
	return errors.New("device busy")
}

// blindLookupStore never sees existing checksums, as when another run
// registers the same content between this run's dedup check and its insert.
type blindLookupStore struct{ *catalog.Store }

func (blindLookupStore) LookupByChecksum(context.Context, string) (*catalog.MediaRecord, error) {
	return nil, nil
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// moveBackRecorder snapshots the log when MoveBack starts.
type moveBackRecorder struct {
	*placement.Engine
	logs    *lockedBuffer
	atStart string
}

func (m *moveBackRecorder) MoveBack(ctx context.Context, p placement.Placement) error {
	m.atStart = m.logs.String()
	return m.Engine.MoveBack(ctx, p)
}

func TestRunRegistersDistinctFiles(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	h.inbox(t, "FooBar[vhX7bJ37ukA](Display@handle,20240521).mp4", "first payload")
	h.inbox(t, "plainname.mkv", "second payload")

	summary, err := h.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Registered != 2 || summary.HasRollback() || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.RunID == "" {
		t.Fatal("expected run id")
	}

	ids := map[string]bool{}
	sums := map[string]bool{}
	for _, res := range summary.Results {
		if res.State != checkin.StateRegistered {
			t.Fatalf("unexpected state %s for %s (%v)", res.State, res.Source, res.Err)
		}
		ids[res.FileID] = true
		sums[res.Checksum] = true

		place, err := h.store.Placement(context.Background(), res.FileID)
		if err != nil || place == nil {
			t.Fatalf("placement lookup: %v %v", place, err)
		}
		if _, err := os.Stat(place.Path()); err != nil {
			t.Fatalf("expected file at %s: %v", place.Path(), err)
		}
		if filepath.Dir(place.Path()) != filepath.Join(h.cfg.Paths.ArchiveDir, "2024", "05", "21") {
			t.Fatalf("unexpected placement dir %s", place.FolderPath)
		}
		if _, err := os.Stat(res.Source); !os.IsNotExist(err) {
			t.Fatalf("expected inbox file removed: %v", err)
		}
	}
	if len(ids) != 2 || len(sums) != 2 {
		t.Fatalf("expected distinct ids and checksums, got %v %v", ids, sums)
	}

	rec, err := h.store.LookupByChecksum(context.Background(), summary.Results[0].Checksum)
	if err != nil || rec == nil {
		t.Fatalf("lookup: %v %v", rec, err)
	}
	if rec.Author == nil || *rec.Author != "Display@handle" || rec.PublishDate == nil || *rec.PublishDate != "20240521" {
		t.Fatalf("unexpected parsed metadata %+v", rec)
	}
	if rec.OriginalFilename != "FooBar[vhX7bJ37ukA](Display@handle,20240521).mp4" {
		t.Fatalf("unexpected original filename %q", rec.OriginalFilename)
	}
}

func TestRunSkipsDuplicateContent(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	h.inbox(t, "a.mp4", "same bytes")
	if _, err := h.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	again := h.inbox(t, "copy of a.mp4", "same bytes")
	summary, err := h.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Duplicates != 1 || summary.Registered != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Results[0].State != checkin.StateDuplicate {
		t.Fatalf("expected duplicate state, got %s", summary.Results[0].State)
	}
	if _, err := os.Stat(again); err != nil {
		t.Fatalf("duplicate must stay in the inbox untouched: %v", err)
	}
	if n, _ := h.store.Count(context.Background()); n != 1 {
		t.Fatalf("expected one record, got %d", n)
	}
}

func TestRunRollsBackOnRegistrationFailure(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	failing := failingRegisterStore{Store: h.store, err: catalog.ErrConstraintViolation}
	pipeline := checkin.New(failing, h.engine, mustOptions(t, h.cfg), logging.NewNop())

	src := h.inbox(t, "Talk(x@y,20240101).webm", "payload")
	summary, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !summary.HasRollback() || summary.RolledBack != 1 {
		t.Fatalf("expected rollback, got %+v", summary)
	}
	res := summary.Results[0]
	if res.State != checkin.StateRolledBack || !errors.Is(res.Err, catalog.ErrConstraintViolation) {
		t.Fatalf("unexpected result %+v", res)
	}
	data, err := os.ReadFile(src)
	if err != nil || string(data) != "payload" {
		t.Fatalf("expected file restored to %s, got %q (%v)", src, data, err)
	}
	if _, err := os.Stat(res.Destination); !os.IsNotExist(err) {
		t.Fatalf("expected archive copy removed: %v", err)
	}
	if n, _ := h.store.Count(context.Background()); n != 0 {
		t.Fatalf("expected no records, got %d", n)
	}
}

func TestRunStopsWhenRegistrationStoreBecomesUnavailable(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	failing := failingRegisterStore{Store: h.store, err: catalog.ErrUnavailable}
	pipeline := checkin.New(failing, h.engine, mustOptions(t, h.cfg), logging.NewNop())

	first := h.inbox(t, "a.mp4", "one")
	second := h.inbox(t, "b.mp4", "two")
	summary, err := pipeline.Run(context.Background())
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Fatalf("expected run-fatal ErrUnavailable, got %v", err)
	}
	if summary.Processed() != 1 || summary.RolledBack != 1 {
		t.Fatalf("expected only the first file processed and rolled back, got %+v", summary)
	}
	for _, path := range []string{first, second} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s in inbox: %v", path, err)
		}
	}
}

func TestRunReportsRollbackFailure(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	failing := failingRegisterStore{Store: h.store, err: catalog.ErrConstraintViolation}
	pipeline := checkin.New(failing, stuckMover{h.engine}, mustOptions(t, h.cfg), logging.NewNop())

	h.inbox(t, "a.mp4", "payload")
	summary, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.RollbackFailed != 1 || !summary.HasRollback() {
		t.Fatalf("expected rollback failure, got %+v", summary)
	}
	if _, err := os.Stat(summary.Results[0].Destination); err != nil {
		t.Fatalf("expected file still in archive: %v", err)
	}
}

func TestRunDisambiguatesExistingDestination(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	dir := placement.DatePartition(h.cfg.Paths.ArchiveDir, fixedNow)
	testsupport.WriteContent(t, filepath.Join(dir, "5janz1kpshf.mp4"), "stray file")
	h.inbox(t, "a.mp4", "payload")

	summary, err := h.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	res := summary.Results[0]
	if res.State != checkin.StateRegistered {
		t.Fatalf("unexpected state %s (%v)", res.State, res.Err)
	}
	if filepath.Base(res.Destination) != "5janz1kpshf_1.mp4" {
		t.Fatalf("expected _1 suffix, got %s", res.Destination)
	}
	place, _ := h.store.Placement(context.Background(), res.FileID)
	if place == nil || place.FileName != "5janz1kpshf_1.mp4" {
		t.Fatalf("expected placement to record disambiguated name, got %+v", place)
	}
}

func TestRunFailPolicyLeavesFileInInbox(t *testing.T) {
	h := newHarness(t, nil, nil, func(o *checkin.Options) { o.Policy = placement.PolicyFail })
	dir := placement.DatePartition(h.cfg.Paths.ArchiveDir, fixedNow)
	testsupport.WriteContent(t, filepath.Join(dir, "5janz1kpshf.mp4"), "stray file")
	src := h.inbox(t, "a.mp4", "payload")

	summary, err := h.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	res := summary.Results[0]
	if res.State != checkin.StateFailed || !errors.Is(res.Err, placement.ErrAlreadyExists) {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("expected file left in inbox: %v", err)
	}
	if summary.HasRollback() {
		t.Fatal("placement failure is not a rollback")
	}
}

func TestRunFingerprintFailureIsHardPerFileError(t *testing.T) {
	h := newHarness(t, nil, nil, func(o *checkin.Options) {
		o.Fingerprint = func(ctx context.Context, path string) (string, error) {
			if strings.HasSuffix(path, "bad.mp4") {
				return "", errors.New("input/output error")
			}
			return "digest-" + filepath.Base(path), nil
		}
	})
	bad := h.inbox(t, "bad.mp4", "x")
	h.inbox(t, "good.mp4", "y")

	summary, err := h.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 1 || summary.Registered != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Results[0].State != checkin.StateFailed || summary.Results[0].Checksum != "" {
		t.Fatalf("unexpected bad result %+v", summary.Results[0])
	}
	if _, err := os.Stat(bad); err != nil {
		t.Fatalf("file with unreadable content must stay in inbox: %v", err)
	}
}

func TestRunStoreUnavailableMovesNothing(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	pipeline := checkin.New(failingPingStore{h.store}, h.engine, mustOptions(t, h.cfg), logging.NewNop())
	src := h.inbox(t, "a.mp4", "payload")

	summary, err := pipeline.Run(context.Background())
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if summary.Processed() != 0 {
		t.Fatalf("expected no files processed, got %d", summary.Processed())
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("expected file untouched: %v", err)
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	h := newHarness(t, nil, nil, func(o *checkin.Options) { o.LockTimeout = 200 * time.Millisecond })
	held := flock.New(filepath.Join(h.cfg.Paths.InboxDir, checkin.LockFileName))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("take lock: %v %v", ok, err)
	}
	defer held.Unlock()

	src := h.inbox(t, "a.mp4", "payload")
	if _, err := h.pipeline.Run(context.Background()); !errors.Is(err, checkin.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("expected file untouched: %v", err)
	}
}

func TestCandidatesFilter(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	h.inbox(t, "b.MP4", "1")
	h.inbox(t, "a.mkv", "2")
	h.inbox(t, ".hidden.mp4", "3")
	h.inbox(t, "notes.txt", "4")
	if err := os.Mkdir(filepath.Join(h.cfg.Paths.InboxDir, "folder.mp4"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := h.pipeline.Candidates()
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(got) != 2 || filepath.Base(got[0]) != "a.mkv" || filepath.Base(got[1]) != "b.MP4" {
		t.Fatalf("unexpected candidates %v", got)
	}
}

func TestRunWritesMetricsTextfile(t *testing.T) {
	metrics, err := checkin.NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	var path string
	h := newHarness(t, nil, nil, func(o *checkin.Options) {
		o.Metrics = metrics
		path = filepath.Join(t.TempDir(), "mediashelf.prom")
		o.MetricsPath = path
	})
	h.inbox(t, "a.mp4", "payload")
	if _, err := h.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got, err := testutil.GatherAndCount(metrics.Registry(), "mediashelf_checkin_files_total"); err != nil || got != 1 {
		t.Fatalf("expected one files_total series, got %d (%v)", got, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `mediashelf_checkin_files_total{state="registered"} 1`) {
		t.Fatalf("unexpected textfile contents:\n%s", data)
	}
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []checkin.State{checkin.StateDuplicate, checkin.StateRegistered, checkin.StateRolledBack, checkin.StateRollbackFailed, checkin.StateFailed} {
		if !s.Terminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	for _, s := range []checkin.State{checkin.StateDiscovered, checkin.StatePlaced, checkin.StateRollingBack} {
		if s.Terminal() {
			t.Fatalf("expected %s to be non-terminal", s)
		}
	}
}

func mustOptions(t *testing.T, cfg *config.Config) checkin.Options {
	t.Helper()
	opts, err := checkin.OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	opts.Now = func() time.Time { return fixedNow }
	return opts
}

func TestRunRollsBackWhenChecksumConstraintRejectsRegistration(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	h.inbox(t, "first.mp4", "same payload")
	first, err := h.pipeline.Run(context.Background())
	if err != nil || first.Registered != 1 {
		t.Fatalf("seed run: %+v %v", first, err)
	}

	opts := mustOptions(t, h.cfg)
	opts.Now = func() time.Time { return fixedNow.Add(time.Minute) }
	racing := checkin.New(blindLookupStore{h.store}, h.engine, opts, logging.NewNop())
	src := h.inbox(t, "second.mp4", "same payload")

	summary, err := racing.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.RolledBack != 1 || summary.Registered != 0 {
		t.Fatalf("expected the losing file rolled back, got %+v", summary)
	}
	res := summary.Results[0]
	if res.State != checkin.StateRolledBack || !errors.Is(res.Err, catalog.ErrConstraintViolation) {
		t.Fatalf("unexpected result %+v", res)
	}
	data, err := os.ReadFile(src)
	if err != nil || string(data) != "same payload" {
		t.Fatalf("expected file restored to %s, got %q (%v)", src, data, err)
	}
	if _, err := os.Stat(res.Destination); !os.IsNotExist(err) {
		t.Fatalf("expected archive copy removed: %v", err)
	}
	if n, _ := h.store.Count(context.Background()); n != 1 {
		t.Fatalf("expected one record, got %d", n)
	}
	if rec, _ := h.store.GetByID(context.Background(), res.FileID); rec != nil {
		t.Fatalf("expected no record for rolled back id %s", res.FileID)
	}
}

func TestRollbackEntersRollingBackBeforeMoveBack(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	logs := &lockedBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	mover := &moveBackRecorder{Engine: h.engine, logs: logs}
	failing := failingRegisterStore{Store: h.store, err: catalog.ErrConstraintViolation}
	pipeline := checkin.New(failing, mover, mustOptions(t, h.cfg), logger)

	h.inbox(t, "a.mp4", "payload")
	summary, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Results[0].State != checkin.StateRolledBack {
		t.Fatalf("unexpected result %+v", summary.Results[0])
	}
	if !strings.Contains(mover.atStart, `"state":"rolling_back"`) {
		t.Fatalf("expected rolling_back state logged before MoveBack, got:\n%s", mover.atStart)
	}
}

func TestRunFailsFileWhenClockCannotBeEncoded(t *testing.T) {
	h := newHarness(t, nil, nil, func(o *checkin.Options) {
		o.Now = func() time.Time { return fixedNow.AddDate(-2025, 0, 0) }
	})
	src := h.inbox(t, "a.mp4", "payload")

	summary, err := h.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	res := summary.Results[0]
	if res.State != checkin.StateFailed || res.FileID != "" || !errors.Is(res.Err, fileid.ErrInvalidArgument) {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("expected file left in inbox: %v", err)
	}
	if n, _ := h.store.Count(context.Background()); n != 0 {
		t.Fatalf("expected no records, got %d", n)
	}
}
