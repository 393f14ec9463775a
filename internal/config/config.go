package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, database, and bind address configuration.
type Paths struct {
	InboxDir     string `toml:"inbox_dir"`
	ArchiveDir   string `toml:"archive_dir"`
	ThumbnailDir string `toml:"thumbnail_dir"`
	DatabasePath string `toml:"database_path"`
	LogDir       string `toml:"log_dir"`
	APIBind      string `toml:"api_bind"`
}

// Checkin contains configuration for the inbox check-in pipeline.
type Checkin struct {
	// Extensions lists accepted media extensions without the leading dot.
	Extensions []string `toml:"extensions"`
	// CollisionPolicy is "disambiguate" (append _1, _2, ...) or "fail".
	CollisionPolicy string `toml:"collision_policy"`
	// LockTimeout is how long a run waits for the inbox lock, in seconds.
	LockTimeout int `toml:"lock_timeout"`
}

// Thumbnail contains configuration for cover/thumbnail extraction.
type Thumbnail struct {
	Enabled       bool   `toml:"enabled"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	SeekOffset    string `toml:"seek_offset"`
	Timeout       int    `toml:"timeout"`
}

// Volume contains configuration for removable media cataloging.
type Volume struct {
	Device       string `toml:"device"`
	LabelTimeout int    `toml:"label_timeout"`
}

// Watch contains configuration for the inbox watcher.
type Watch struct {
	DebounceSeconds int `toml:"debounce_seconds"`
	// RescanSeconds forces a run on this interval even without events; 0 disables.
	RescanSeconds int `toml:"rescan_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics contains configuration for run metrics export.
type Metrics struct {
	// TextfilePath, when set, receives Prometheus text-format metrics after
	// every check-in run (node_exporter textfile collector).
	TextfilePath string `toml:"textfile_path"`
}

// Config encapsulates all configuration values for mediashelf.
//
// Configuration sections by subsystem:
//   - Paths: inbox, archive, thumbnails, database, logs, API bind address
//   - Checkin: accepted extensions, collision policy, run lock timeout
//   - Thumbnail: ffmpeg/ffprobe settings for playlist thumbnails
//   - Volume: optical drive used for removable media cataloging
//   - Watch: inbox watcher debounce
//   - Logging: log format and level
//   - Metrics: Prometheus textfile export
type Config struct {
	Paths     Paths     `toml:"paths"`
	Checkin   Checkin   `toml:"checkin"`
	Thumbnail Thumbnail `toml:"thumbnail"`
	Volume    Volume    `toml:"volume"`
	Watch     Watch     `toml:"watch"`
	Logging   Logging   `toml:"logging"`
	Metrics   Metrics   `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediashelf/config.toml")
}

// LoadDotEnv populates the process environment from a .env file when one is
// present. Variables already set in the environment are left untouched.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediashelf.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a check-in run needs.
// ThumbnailDir is created on a best-effort basis because thumbnails are an
// optional downstream feature.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.InboxDir, c.Paths.ArchiveDir, c.Paths.LogDir}
	if dbDir := filepath.Dir(c.Paths.DatabasePath); dbDir != "" && dbDir != "." {
		dirs = append(dirs, dbDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ThumbnailDir) != "" {
		_ = os.MkdirAll(c.Paths.ThumbnailDir, 0o755)
	}
	return nil
}

// ExtensionSet returns the accepted media extensions as a lookup set keyed by
// lowercase extension including the leading dot.
func (c *Config) ExtensionSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Checkin.Extensions))
	for _, ext := range c.Checkin.Extensions {
		set["."+ext] = struct{}{}
	}
	return set
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}
