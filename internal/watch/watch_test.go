package watch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rjeczalik/notify"
)

type fakeEvent struct {
	path  string
	event notify.Event
}

func (e fakeEvent) Event() notify.Event { return e.event }
func (e fakeEvent) Path() string        { return e.path }
func (e fakeEvent) Sys() any            { return nil }

func newTestWatcher(t *testing.T, opts Options, run RunFunc) *Watcher {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	w, err := New(opts, run, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.subscribe = func(string, chan<- notify.EventInfo) error { return nil }
	w.stop = func(chan<- notify.EventInfo) {}
	return w
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcherDebouncesBursts(t *testing.T) {
	var runs atomic.Int32
	w := newTestWatcher(t, Options{Debounce: 50 * time.Millisecond}, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, func() bool { return runs.Load() == 1 })
	for range 5 {
		w.events <- fakeEvent{path: "/inbox/a.mp4", event: notify.Write}
	}
	waitFor(t, func() bool { return runs.Load() == 2 })
	time.Sleep(150 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Fatalf("expected burst to collapse into one run, got %d runs", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestWatcherIgnoresHiddenAndFiltered(t *testing.T) {
	var runs atomic.Int32
	w := newTestWatcher(t, Options{
		Debounce: 20 * time.Millisecond,
		Ignore:   func(name string) bool { return name == "notes.txt" },
	}, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx) //nolint:errcheck

	waitFor(t, func() bool { return runs.Load() == 1 })
	w.events <- fakeEvent{path: "/inbox/.mediashelf.lock", event: notify.Write}
	w.events <- fakeEvent{path: "/inbox/notes.txt", event: notify.Create}
	time.Sleep(100 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("expected ignored events not to trigger, got %d runs", got)
	}
}

func TestWatcherRescan(t *testing.T) {
	var runs atomic.Int32
	w := newTestWatcher(t, Options{Rescan: 20 * time.Millisecond}, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx) //nolint:errcheck

	waitFor(t, func() bool { return runs.Load() >= 3 })
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Options{}, func(context.Context) error { return nil }, nil); err == nil {
		t.Fatal("expected error without dir")
	}
	if _, err := New(Options{Dir: t.TempDir()}, nil, nil); err == nil {
		t.Fatal("expected error without run function")
	}
}
