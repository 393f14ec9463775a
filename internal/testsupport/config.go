package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mediashelf/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The inbox and archive directories are created; thumbnails are disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InboxDir = filepath.Join(base, "checkin")
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "media")
	cfgVal.Paths.ThumbnailDir = filepath.Join(base, "thumbnail")
	cfgVal.Paths.DatabasePath = filepath.Join(base, "database", "videos.db")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Thumbnail.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	for _, dir := range []string{cfgVal.Paths.InboxDir, cfgVal.Paths.ArchiveDir, filepath.Dir(cfgVal.Paths.DatabasePath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	return builder.cfg
}

// WithCollisionPolicy overrides the check-in collision policy.
func WithCollisionPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Checkin.CollisionPolicy = policy
	}
}

// WithThumbnails enables thumbnail generation using the named ffmpeg binary.
func WithThumbnails(ffmpeg string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Thumbnail.Enabled = true
		b.cfg.Thumbnail.FFmpegBinary = ffmpeg
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. Each stub runs script, which defaults to "exit 0".
func WithStubbedBinaries(script string, names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		if script == "" {
			script = "exit 0"
		}
		StubBinaries(b.t, filepath.Join(b.baseDir, "bin"), script, names...)
	}
}

// StubBinaries writes shell stubs into dir and prepends dir to PATH for the
// duration of the test.
func StubBinaries(t testing.TB, dir, script string, names ...string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	body := []byte("#!/bin/sh\n" + script + "\n")
	for _, name := range names {
		target := filepath.Join(dir, name)
		if err := os.WriteFile(target, body, 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.InboxDir)
}
