package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnvOverrides()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCheckin()
	c.normalizeThumbnail()
	c.normalizeVolume()
	if c.Watch.DebounceSeconds <= 0 {
		c.Watch.DebounceSeconds = defaultWatchDebounce
	}
	if c.Watch.RescanSeconds < 0 {
		c.Watch.RescanSeconds = 0
	}
	c.normalizeLogging()
	if strings.TrimSpace(c.Metrics.TextfilePath) != "" {
		var err error
		if c.Metrics.TextfilePath, err = expandPath(strings.TrimSpace(c.Metrics.TextfilePath)); err != nil {
			return fmt.Errorf("metrics.textfile_path: %w", err)
		}
	}
	return nil
}

// applyEnvOverrides lets environment variables take precedence over the file.
func (c *Config) applyEnvOverrides() {
	overrides := map[string]*string{
		"MEDIASHELF_INBOX_DIR":     &c.Paths.InboxDir,
		"MEDIASHELF_ARCHIVE_DIR":   &c.Paths.ArchiveDir,
		"MEDIASHELF_THUMBNAIL_DIR": &c.Paths.ThumbnailDir,
		"MEDIASHELF_DATABASE":      &c.Paths.DatabasePath,
		"MEDIASHELF_LOG_DIR":       &c.Paths.LogDir,
	}
	for key, target := range overrides {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.InboxDir) == "" {
		c.Paths.InboxDir = defaultInboxDir
	}
	if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		c.Paths.ArchiveDir = defaultArchiveDir
	}
	if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ThumbnailDir) == "" {
		c.Paths.ThumbnailDir = defaultThumbnailDir
	}
	if c.Paths.ThumbnailDir, err = expandPath(c.Paths.ThumbnailDir); err != nil {
		return fmt.Errorf("paths.thumbnail_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = defaultDatabasePath
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeCheckin() {
	exts := make([]string, 0, len(c.Checkin.Extensions))
	seen := make(map[string]struct{}, len(c.Checkin.Extensions))
	for _, ext := range c.Checkin.Extensions {
		normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultExtensions...)
	}
	c.Checkin.Extensions = exts

	c.Checkin.CollisionPolicy = strings.ToLower(strings.TrimSpace(c.Checkin.CollisionPolicy))
	if c.Checkin.CollisionPolicy == "" {
		c.Checkin.CollisionPolicy = defaultCollisionPolicy
	}
	if c.Checkin.LockTimeout <= 0 {
		c.Checkin.LockTimeout = defaultLockTimeout
	}
}

func (c *Config) normalizeThumbnail() {
	c.Thumbnail.FFmpegBinary = strings.TrimSpace(c.Thumbnail.FFmpegBinary)
	if c.Thumbnail.FFmpegBinary == "" {
		c.Thumbnail.FFmpegBinary = defaultFFmpegBinary
	}
	c.Thumbnail.FFprobeBinary = strings.TrimSpace(c.Thumbnail.FFprobeBinary)
	if c.Thumbnail.FFprobeBinary == "" {
		c.Thumbnail.FFprobeBinary = defaultFFprobeBinary
	}
	c.Thumbnail.SeekOffset = strings.TrimSpace(c.Thumbnail.SeekOffset)
	if c.Thumbnail.SeekOffset == "" {
		c.Thumbnail.SeekOffset = defaultSeekOffset
	}
	if c.Thumbnail.Timeout <= 0 {
		c.Thumbnail.Timeout = defaultThumbnailTimeout
	}
}

func (c *Config) normalizeVolume() {
	c.Volume.Device = strings.TrimSpace(c.Volume.Device)
	if c.Volume.Device == "" {
		c.Volume.Device = defaultOpticalDrive
	}
	if c.Volume.LabelTimeout <= 0 {
		c.Volume.LabelTimeout = defaultLabelTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
