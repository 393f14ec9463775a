// Package filename extracts best-effort title, author, and publish date
// metadata from downloaded media file names shaped like
// "Title(Display@handle,YYYYMMDD).ext".
//
// Parsing never fails. Any field that cannot be recovered is nil.
package filename

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

var publishDatePattern = regexp.MustCompile(`^\d{8}$`)

// Metadata is the result of parsing a file name. A nil field means the value
// was absent; no field is ever an empty string.
type Metadata struct {
	Title       *string
	Author      *string
	PublishDate *string
}

// Degraded reports whether any field could not be recovered.
func (m Metadata) Degraded() bool {
	return m.Title == nil || m.Author == nil || m.PublishDate == nil
}

// PublishTime parses PublishDate as a calendar date. ok is false when the date
// is absent or not a valid day.
func (m Metadata) PublishTime() (t time.Time, ok bool) {
	if m.PublishDate == nil {
		return time.Time{}, false
	}
	parsed, err := time.Parse("20060102", *m.PublishDate)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// Parse extracts metadata from name, which may include directories and an
// extension. The name is NFC-normalized first.
func Parse(name string) Metadata {
	base := norm.NFC.String(filepath.Base(name))

	stem := base
	if idx := strings.LastIndex(stem, "."); idx >= 0 {
		stem = stem[:idx]
	}

	title, tail, found := strings.Cut(stem, "(")
	if !found {
		return Metadata{Title: optional(stem)}
	}

	meta := Metadata{Title: optional(title)}
	tail = strings.TrimSuffix(tail, ")")

	if idx := strings.LastIndex(tail, ","); idx >= 0 {
		meta.Author = optional(tail[:idx])
		if right := strings.TrimSpace(tail[idx+1:]); publishDatePattern.MatchString(right) {
			meta.PublishDate = &right
		}
		return meta
	}

	if strings.Contains(tail, "@") {
		meta.Author = optional(tail)
	}
	return meta
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
