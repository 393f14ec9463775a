// Package thumbnail extracts a still image for archived media using ffmpeg.
//
// An embedded cover (an attached_pic stream) is preferred. Otherwise a single
// frame is grabbed at the configured seek offset, or at the start for clips
// shorter than the offset. Images are written to thumbnail_dir/YYYY/MM/ keyed
// by the archived file's base name.
package thumbnail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mediashelf/internal/config"
	"mediashelf/internal/logging"
	"mediashelf/internal/services"
)

// Generator creates thumbnails.
type Generator struct {
	ffmpeg  string
	ffprobe string
	outDir  string
	seek    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewGenerator builds a Generator from configuration.
func NewGenerator(cfg *config.Config, logger *slog.Logger) *Generator {
	return &Generator{
		ffmpeg:  cfg.Thumbnail.FFmpegBinary,
		ffprobe: cfg.Thumbnail.FFprobeBinary,
		outDir:  cfg.Paths.ThumbnailDir,
		seek:    cfg.Thumbnail.SeekOffset,
		timeout: time.Duration(cfg.Thumbnail.Timeout) * time.Second,
		logger:  logging.NewComponentLogger(logger, "thumbnail"),
	}
}

// OutputPath returns where Create writes the thumbnail for path.
func (g *Generator) OutputPath(path string, checkinTime time.Time) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(g.outDir, checkinTime.Format("2006"), checkinTime.Format("01"), base+".png")
}

// Create writes a PNG thumbnail for the media file at path and returns its
// location.
func (g *Generator) Create(ctx context.Context, path string, checkinTime time.Time) (string, error) {
	if strings.TrimSpace(g.outDir) == "" {
		return "", services.Wrap(services.ErrConfiguration, "thumbnail", "resolve output dir",
			"Thumbnail directory not configured; set paths.thumbnail_dir", nil)
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	logger := logging.WithContext(ctx, g.logger)

	out := g.OutputPath(path, checkinTime)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "thumbnail", "ensure output dir",
			"Failed to create thumbnail directory", err)
	}

	args := []string{"-y", "-v", "error"}
	probe, err := Inspect(ctx, g.ffprobe, path)
	if err != nil {
		logger.Debug("ffprobe failed; grabbing a frame", logging.Error(err))
	}
	if idx, ok := probe.AttachedPicture(); ok {
		args = append(args, "-i", path, "-map", "0:"+strconv.Itoa(idx), "-frames:v", "1", out)
	} else {
		args = append(args, "-ss", g.seekFor(probe), "-i", path, "-frames:v", "1", out)
	}

	cmd := exec.CommandContext(ctx, g.ffmpeg, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "thumbnail", "run ffmpeg",
			fmt.Sprintf("ffmpeg failed for %s: %s", path, strings.TrimSpace(string(output))), err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "thumbnail", "verify output",
			"ffmpeg produced no image", err)
	}
	logger.Debug("thumbnail created", logging.String("thumbnail", out))
	return out, nil
}

// seekFor falls back to the first frame when the clip is shorter than the
// configured offset.
func (g *Generator) seekFor(probe Probe) string {
	seek := g.seek
	if seek == "" {
		seek = "00:00:10"
	}
	duration := probe.DurationSeconds()
	if duration <= 0 {
		return seek
	}
	if offset, ok := parseClock(seek); ok && offset >= duration {
		return "00:00:00"
	}
	return seek
}

func parseClock(value string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0, false
	}
	total := 0.0
	for _, part := range parts {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
