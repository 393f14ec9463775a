package volume

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"mediashelf/internal/logging"
)

// InsertHandler is invoked for every disc insertion on the watched device.
type InsertHandler func(ctx context.Context, device string) error

// Watcher listens for udev netlink events announcing media in an optical
// drive.
type Watcher struct {
	device  string
	handler InsertHandler
	logger  *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	done    chan struct{}
	running bool
}

// NewWatcher returns nil when device is empty.
func NewWatcher(device string, handler InsertHandler, logger *slog.Logger) *Watcher {
	device = strings.TrimSpace(device)
	if device == "" {
		return nil
	}
	return &Watcher{
		device:  device,
		handler: handler,
		logger:  logging.NewComponentLogger(logger, "volume-watcher"),
	}
}

// Start connects to the udev netlink socket and begins dispatching events.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return fmt.Errorf("connect netlink socket: %w", err)
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true

	go w.loop(ctx, conn, w.quit, w.done)

	w.logger.Info("volume watcher started",
		logging.String(logging.FieldEventType, "volume_watcher_started"),
		logging.String("device", w.device),
	)
	return nil
}

// Stop shuts the watcher down and waits for the event loop to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.quit)
	done := w.done
	w.quit = nil
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.running = false
	w.mu.Unlock()

	<-done
	w.logger.Info("volume watcher stopped",
		logging.String(logging.FieldEventType, "volume_watcher_stopped"),
	)
}

// Running reports whether the watcher is active.
func (w *Watcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, insertMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			w.handleEvent(ctx, uevent)
		case err := <-errs:
			logging.WarnWithContext(w.logger, "netlink monitor error", "volume_watcher_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "disc insertions may be missed"),
			)
		}
	}
}

// insertMatcher matches SUBSYSTEM=block, ID_CDROM=1, ID_CDROM_MEDIA=1 on
// change or add.
func insertMatcher() netlink.Matcher {
	action := "change|add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":      "block",
			"ID_CDROM":       "1",
			"ID_CDROM_MEDIA": "1",
		},
	})
	return rules
}

func (w *Watcher) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	devname := deviceName(uevent)
	if devname == "" {
		w.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}
	if devname != w.device {
		w.logger.Debug("ignoring event for other device",
			logging.String("device", devname),
			logging.String("configured_device", w.device),
		)
		return
	}

	w.logger.Info("disc inserted",
		logging.String(logging.FieldEventType, "volume_disc_detected"),
		logging.String("device", devname),
		logging.String("action", string(uevent.Action)),
	)
	if w.handler == nil {
		return
	}
	if err := w.handler(ctx, devname); err != nil {
		logging.WarnWithContext(w.logger, "disc insert handler failed", "volume_handler_failed",
			logging.Error(err),
			logging.String("device", devname),
			logging.String(logging.FieldErrorHint, "run mediashelf volume register manually"),
			logging.String(logging.FieldImpact, "disc not cataloged"),
		)
	}
}

// deviceName prefers DEVNAME and falls back to the last DEVPATH segment.
func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
