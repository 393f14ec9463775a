package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediashelf/internal/catalog"
	"mediashelf/internal/config"
	"mediashelf/internal/fileid"
	"mediashelf/internal/filename"
	"mediashelf/internal/fingerprint"
	"mediashelf/internal/logging"
	"mediashelf/internal/placement"
	"mediashelf/internal/services"
)

// Store is the slice of the catalog the pipeline writes through.
type Store interface {
	Ping(ctx context.Context) error
	LookupByChecksum(ctx context.Context, hash string) (*catalog.MediaRecord, error)
	Register(ctx context.Context, rec catalog.MediaRecord, place catalog.PlacementRecord) error
}

// Mover places files into the archive and restores them on rollback.
type Mover interface {
	Place(ctx context.Context, req placement.Request) (placement.Placement, error)
	MoveBack(ctx context.Context, p placement.Placement) error
}

// Options configures a Pipeline.
type Options struct {
	InboxDir    string
	ArchiveDir  string
	Extensions  []string
	Policy      placement.Policy
	LockTimeout time.Duration
	// Now supplies the check-in clock; defaults to time.Now.
	Now func() time.Time
	// Fingerprint hashes a file; defaults to fingerprint.File.
	Fingerprint func(ctx context.Context, path string) (string, error)
	Metrics     *Metrics
	MetricsPath string
}

// OptionsFromConfig derives pipeline options from configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	policy, err := placement.ParsePolicy(cfg.Checkin.CollisionPolicy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		InboxDir:    cfg.Paths.InboxDir,
		ArchiveDir:  cfg.Paths.ArchiveDir,
		Extensions:  cfg.Checkin.Extensions,
		Policy:      policy,
		LockTimeout: time.Duration(cfg.Checkin.LockTimeout) * time.Second,
		MetricsPath: cfg.Metrics.TextfilePath,
	}, nil
}

// Pipeline checks files in from the inbox.
type Pipeline struct {
	store      Store
	mover      Mover
	opts       Options
	extensions map[string]struct{}
	logger     *slog.Logger
	lastStamp  time.Time
}

// New constructs a Pipeline.
func New(store Store, mover Mover, opts Options, logger *slog.Logger) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fingerprint == nil {
		opts.Fingerprint = fingerprint.File
	}
	if opts.Policy == "" {
		opts.Policy = placement.PolicyDisambiguate
	}
	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			exts["."+ext] = struct{}{}
		}
	}
	return &Pipeline{
		store:      store,
		mover:      mover,
		opts:       opts,
		extensions: exts,
		logger:     logging.NewComponentLogger(logger, "checkin"),
	}
}

// Run processes every candidate in the inbox once. The returned error is
// non-nil only for run-fatal conditions (lock contention, store unavailable,
// cancellation); per-file failures are reported in the Summary.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: uuid.NewString(), StartedAt: p.opts.Now()}
	ctx = services.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, p.logger)

	if strings.TrimSpace(p.opts.InboxDir) == "" || strings.TrimSpace(p.opts.ArchiveDir) == "" {
		return summary, services.Wrap(services.ErrConfiguration, "checkin", "validate options",
			"inbox and archive directories are required", nil)
	}

	lock, err := acquireLock(ctx, p.opts.InboxDir, p.opts.LockTimeout)
	if err != nil {
		return summary, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release inbox lock", logging.Error(err))
		}
	}()

	if err := p.store.Ping(ctx); err != nil {
		logging.ErrorWithContext(logger, "catalog store unavailable; no files moved", "store_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.database_path and disk space"),
		)
		return summary, err
	}

	candidates, err := p.Candidates()
	if err != nil {
		return summary, err
	}
	logger.Info("check-in run started",
		logging.String("inbox", p.opts.InboxDir),
		logging.String("archive", p.opts.ArchiveDir),
		logging.Int("candidates", len(candidates)),
	)

	var runErr error
	for _, path := range candidates {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		res := p.Process(ctx, path)
		summary.add(res)
		if res.Err != nil && errors.Is(res.Err, catalog.ErrUnavailable) {
			runErr = res.Err
			break
		}
	}

	summary.FinishedAt = p.opts.Now()
	p.finish(ctx, summary)
	return summary, runErr
}

func (p *Pipeline) finish(ctx context.Context, summary Summary) {
	logger := logging.WithContext(ctx, p.logger)
	attrs := []logging.Attr{
		logging.Int("processed", summary.Processed()),
		logging.Int("registered", summary.Registered),
		logging.Int("duplicates", summary.Duplicates),
		logging.Int("failed", summary.Failed),
		logging.Int("rolled_back", summary.RolledBack),
		logging.Int("rollback_failed", summary.RollbackFailed),
	}
	if summary.HasRollback() {
		logging.WarnWithContext(logger, "check-in run finished with rollbacks", "checkin_rollback",
			append(attrs, logging.String(logging.FieldImpact, "some files were returned to the inbox"))...)
	} else {
		logger.Info("check-in run finished", logging.Args(attrs...)...)
	}

	if p.opts.Metrics != nil {
		p.opts.Metrics.Observe(summary)
		if err := p.opts.Metrics.WriteTextfile(p.opts.MetricsPath); err != nil {
			logging.WarnWithContext(logger, "metrics export failed", "metrics_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "textfile metrics are stale"),
			)
		}
	}
}

// Candidates lists regular inbox files with an accepted extension, sorted by
// name. Hidden files, including the run lock, are skipped.
func (p *Pipeline) Candidates() ([]string, error) {
	entries, err := os.ReadDir(p.opts.InboxDir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "checkin", "list inbox",
			fmt.Sprintf("Unable to read inbox %s", p.opts.InboxDir), err)
	}
	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !entry.Type().IsRegular() {
			continue
		}
		if _, ok := p.extensions[strings.ToLower(filepath.Ext(name))]; !ok {
			continue
		}
		out = append(out, filepath.Join(p.opts.InboxDir, name))
	}
	return out, nil
}

// Process drives one file to a terminal state.
func (p *Pipeline) Process(ctx context.Context, path string) Result {
	res := Result{Source: path, State: StateDiscovered}
	logger := logging.WithContext(ctx, p.logger).With(logging.Source(path))

	meta := filename.Parse(path)
	if meta.Degraded() {
		logger.Debug("filename metadata incomplete",
			logging.Bool("has_title", meta.Title != nil),
			logging.Bool("has_author", meta.Author != nil),
			logging.Bool("has_publish_date", meta.PublishDate != nil),
		)
	}

	sum, err := p.opts.Fingerprint(services.WithStage(ctx, "fingerprint"), path)
	if err == nil && sum == "" {
		err = fingerprint.ErrUnavailable
	}
	if err != nil {
		return p.fail(ctx, res, "fingerprint", services.Wrap(services.ErrTransient, "checkin", "fingerprint",
			"Unable to hash file; it stays in the inbox", err))
	}
	res.Checksum = sum
	res.State = StateFingerprinted

	existing, err := p.store.LookupByChecksum(services.WithStage(ctx, "dedup"), sum)
	if err != nil {
		return p.fail(ctx, res, "dedup", err)
	}
	if existing != nil {
		res.State = StateDuplicate
		res.FileID = existing.FileID
		logger.Info("duplicate content skipped",
			logging.Checksum(sum),
			logging.String("existing_file_id", existing.FileID),
		)
		return res
	}

	res.State = StateNew
	now := p.nextStamp()
	id, err := fileid.FromTime(now)
	if err != nil {
		return p.fail(ctx, res, "identify", services.Wrap(services.ErrValidation, "checkin", "identify",
			"Check-in clock cannot be encoded as an identifier", err))
	}
	res.FileID = id
	ctx = services.WithFileID(ctx, res.FileID)

	placed, err := p.mover.Place(services.WithStage(ctx, "place"), placement.Request{
		Source:      path,
		ArchiveRoot: p.opts.ArchiveDir,
		FileID:      res.FileID,
		CheckinTime: now,
		Policy:      p.opts.Policy,
	})
	if err != nil {
		return p.fail(ctx, res, "place", err)
	}
	res.State = StatePlaced
	res.Destination = placed.Destination

	rec := catalog.MediaRecord{
		FileID:           res.FileID,
		Title:            meta.Title,
		Author:           meta.Author,
		PublishDate:      meta.PublishDate,
		OriginalFilename: filepath.Base(path),
		Checksum:         sum,
		CheckinTime:      now,
		OnLocalDisk:      true,
	}
	place := catalog.PlacementRecord{FileID: res.FileID, FolderPath: placed.Dir, FileName: placed.FileName}
	if err := p.store.Register(services.WithStage(ctx, "register"), rec, place); err != nil {
		res.Err = err
		p.rollback(ctx, &res, placed)
		return res
	}

	res.State = StateRegistered
	logging.WithContext(ctx, p.logger).Info("file checked in",
		logging.Source(path),
		logging.Destination(placed.Destination),
		logging.Checksum(sum),
	)
	return res
}

// rollback returns a placed file to its inbox path after registration failed
// and leaves res in RolledBack or RollbackFailed. It runs even if ctx was
// cancelled so the archive never keeps an unregistered file because of a
// shutdown.
func (p *Pipeline) rollback(ctx context.Context, res *Result, placed placement.Placement) {
	res.State = StateRollingBack
	ctx = services.WithStage(context.WithoutCancel(ctx), "rollback")
	logger := logging.WithContext(ctx, p.logger)
	detail := []logging.Attr{
		logging.State(res.State.String()),
		logging.Checksum(res.Checksum),
		logging.Source(placed.Source),
		logging.Destination(placed.Destination),
		logging.Error(res.Err),
	}

	logging.WarnWithContext(logger, "registration failed; moving file back", "registration_failed",
		append(detail, logging.String(logging.FieldImpact, "file returned to inbox unregistered"))...)

	if err := p.mover.MoveBack(ctx, placed); err != nil {
		logging.ErrorWithContext(logger, "rollback failed; file left in archive without a catalog row", "rollback_failed",
			append(detail,
				logging.Any("rollback_error", err),
				logging.String(logging.FieldErrorHint, fmt.Sprintf("mv -n %q %q", placed.Destination, placed.Source)),
			)...)
		res.State = StateRollbackFailed
		return
	}
	res.State = StateRolledBack
	logger.Info("file rolled back", logging.Source(placed.Source))
}

func (p *Pipeline) fail(ctx context.Context, res Result, stage string, err error) Result {
	res.State = StateFailed
	res.Err = err
	logging.ErrorWithContext(logging.WithContext(services.WithStage(ctx, stage), p.logger),
		"check-in failed; file left in inbox", "checkin_failed",
		logging.Source(res.Source),
		logging.Error(err),
	)
	return res
}

// nextStamp returns the check-in instant, truncated to milliseconds and
// strictly increasing within this pipeline so identifiers never repeat.
func (p *Pipeline) nextStamp() time.Time {
	now := p.opts.Now().Truncate(time.Millisecond)
	if !p.lastStamp.IsZero() && !now.After(p.lastStamp) {
		now = p.lastStamp.Add(time.Millisecond)
	}
	p.lastStamp = now
	return now
}
