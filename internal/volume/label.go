package volume

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"time"

	"mediashelf/internal/services"
)

// ReadLabel returns the filesystem label of the disc in device.
func ReadLabel(ctx context.Context, device string, timeout time.Duration) (string, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return "", services.Wrap(services.ErrConfiguration, "volume", "read label",
			"No device specified; set volume.device", nil)
	}

	lsblkCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		lsblkCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	output, err := exec.CommandContext(lsblkCtx, "lsblk", "-P", "-o", "LABEL,FSTYPE", device).Output()
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "volume", "run lsblk",
			"Failed to query "+device, err)
	}

	label, fstype := ParseLSBLK(string(output))
	if strings.TrimSpace(label) != "" && strings.TrimSpace(fstype) != "" {
		return label, nil
	}
	return "", services.Wrap(services.ErrNotFound, "volume", "read label",
		"No disc label found on "+device, nil)
}

// ParseLSBLK returns the first LABEL/FSTYPE pair from lsblk -P output.
func ParseLSBLK(output string) (string, string) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		data := parsePairs(line)
		if len(data) == 0 {
			continue
		}
		return data["LABEL"], data["FSTYPE"]
	}
	return "", ""
}

// parsePairs splits KEY="value" pairs; quoted values may contain spaces.
func parsePairs(line string) map[string]string {
	result := make(map[string]string)
	for len(line) > 0 {
		line = strings.TrimLeft(line, " \t")
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			break
		}
		key := strings.TrimSpace(line[:eq])
		rest := line[eq+1:]
		var value string
		if strings.HasPrefix(rest, "\"") {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				value, rest = rest[1:], ""
			} else {
				value, rest = rest[1:end+1], rest[end+2:]
			}
		} else {
			value, rest, _ = strings.Cut(rest, " ")
		}
		result[key] = value
		line = rest
	}
	return result
}
