package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCheckin(); err != nil {
		return err
	}
	if err := c.validateThumbnail(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.InboxDir) == "" {
		return errors.New("paths.inbox_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		return errors.New("paths.archive_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		return errors.New("paths.database_path must be set")
	}
	inbox := filepath.Clean(c.Paths.InboxDir)
	archive := filepath.Clean(c.Paths.ArchiveDir)
	if inbox == archive {
		return errors.New("paths.inbox_dir and paths.archive_dir must differ")
	}
	if rel, err := filepath.Rel(inbox, archive); err == nil && !strings.HasPrefix(rel, "..") {
		return fmt.Errorf("paths.archive_dir %q must not live inside paths.inbox_dir %q", archive, inbox)
	}
	return nil
}

func (c *Config) validateCheckin() error {
	switch c.Checkin.CollisionPolicy {
	case "disambiguate", "fail":
	default:
		return fmt.Errorf("checkin.collision_policy must be \"disambiguate\" or \"fail\", got %q", c.Checkin.CollisionPolicy)
	}
	if c.Checkin.LockTimeout <= 0 {
		return errors.New("checkin.lock_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateThumbnail() error {
	if c.Thumbnail.Enabled && strings.TrimSpace(c.Paths.ThumbnailDir) == "" {
		return errors.New("paths.thumbnail_dir must be set when thumbnail.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}
