package thumbnail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Probe is the subset of ffprobe output used to pick a thumbnail source.
type Probe struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index       int            `json:"index"`
	CodecName   string         `json:"codec_name"`
	CodecType   string         `json:"codec_type"`
	Disposition map[string]int `json:"disposition"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Duration string `json:"duration"`
}

// Inspect executes ffprobe against path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Probe, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Probe{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		return Probe{}, fmt.Errorf("ffprobe inspect: %w", err)
	}

	var probe Probe
	if err := json.Unmarshal(output, &probe); err != nil {
		return Probe{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return probe, nil
}

// AttachedPicture returns the stream index of an embedded cover image.
func (p Probe) AttachedPicture() (int, bool) {
	for _, stream := range p.Streams {
		if strings.EqualFold(stream.CodecType, "video") && stream.Disposition["attached_pic"] == 1 {
			return stream.Index, true
		}
	}
	return 0, false
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (p Probe) DurationSeconds() float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(p.Format.Duration), 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
