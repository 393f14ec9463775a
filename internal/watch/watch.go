// Package watch triggers check-in runs when files land in the inbox.
//
// Filesystem events are debounced so a burst of writes (a large copy, a batch
// of files) collapses into a single run. Runs are executed one at a time from
// the watcher goroutine; events that arrive during a run schedule another run
// once it finishes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/rjeczalik/notify"

	"mediashelf/internal/logging"
)

// RunFunc performs one check-in pass.
type RunFunc func(ctx context.Context) error

// Options configures a Watcher.
type Options struct {
	Dir      string
	Debounce time.Duration
	// Rescan forces a run on this interval; zero disables it.
	Rescan time.Duration
	// Ignore reports base names whose events should not trigger a run.
	Ignore func(name string) bool
}

// Watcher observes the inbox directory.
type Watcher struct {
	opts   Options
	run    RunFunc
	logger *slog.Logger
	events chan notify.EventInfo
	// subscribe is swapped in tests to avoid depending on inotify timing.
	subscribe func(dir string, c chan<- notify.EventInfo) error
	stop      func(c chan<- notify.EventInfo)
}

// New builds a Watcher that calls run after inbox changes settle.
func New(opts Options, run RunFunc, logger *slog.Logger) (*Watcher, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("watch directory is required")
	}
	if run == nil {
		return nil, errors.New("watch run function is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 5 * time.Second
	}
	return &Watcher{
		opts:   opts,
		run:    run,
		logger: logging.NewComponentLogger(logger, "watch"),
		events: make(chan notify.EventInfo, 64),
		subscribe: func(dir string, c chan<- notify.EventInfo) error {
			return notify.Watch(dir, c, notify.Create, notify.Write, notify.Rename)
		},
		stop: notify.Stop,
	}, nil
}

// Run performs an initial pass, then blocks dispatching runs until ctx is
// cancelled. Run errors are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.subscribe(w.opts.Dir, w.events); err != nil {
		return fmt.Errorf("watch %s: %w", w.opts.Dir, err)
	}
	defer w.stop(w.events)

	w.logger.Info("watching inbox",
		logging.String("dir", w.opts.Dir),
		logging.Duration("debounce", w.opts.Debounce),
		logging.Duration("rescan", w.opts.Rescan),
	)

	var rescan <-chan time.Time
	if w.opts.Rescan > 0 {
		ticker := time.NewTicker(w.opts.Rescan)
		defer ticker.Stop()
		rescan = ticker.C
	}

	debounce := time.NewTimer(w.opts.Debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	w.trigger(ctx, "startup")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.events:
			if w.ignored(ev.Path()) {
				continue
			}
			w.logger.Debug("inbox event",
				logging.Path(ev.Path()),
				logging.String("event", ev.Event().String()),
			)
			debounce.Reset(w.opts.Debounce)
		case <-debounce.C:
			w.trigger(ctx, "event")
		case <-rescan:
			w.trigger(ctx, "rescan")
		}
	}
}

func (w *Watcher) ignored(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return true
	}
	return w.opts.Ignore != nil && w.opts.Ignore(name)
}

func (w *Watcher) trigger(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	w.logger.Debug("starting check-in", logging.String("reason", reason))
	if err := w.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.WarnWithContext(w.logger, "check-in run failed", "watch_run_failed",
			logging.String("reason", reason),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "see the run log above; the next change or rescan retries"),
			logging.String(logging.FieldImpact, "inbox files wait for the next run"),
		)
	}
}
