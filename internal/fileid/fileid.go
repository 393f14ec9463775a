// Package fileid mints the canonical identifiers used as catalog keys and
// archive file names.
//
// An identifier is the check-in instant written as YYYYMMDDHHMMSS plus a
// three digit millisecond suffix, read as a decimal integer, and re-encoded in
// base 36. The encoding is compact and filesystem safe. It is not guaranteed
// to sort in timestamp order across magnitude changes, so callers order
// records by check-in time rather than by identifier.
package fileid

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidArgument reports an input that cannot be encoded.
var ErrInvalidArgument = errors.New("invalid argument")

// Base36 encodes n using the digits 0-9a-z, most significant digit first.
func Base36(n int64) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("%w: cannot encode negative value %d", ErrInvalidArgument, n)
	}
	return strconv.FormatInt(n, 36), nil
}

// FromTime derives the identifier for t in t's own location. Years outside
// 0 through 9222 cannot be encoded and return ErrInvalidArgument.
func FromTime(t time.Time) (string, error) {
	if y := t.Year(); y < 0 || y > 9222 {
		return "", fmt.Errorf("%w: year %d out of range", ErrInvalidArgument, y)
	}
	stamp := fmt.Sprintf("%s%03d", t.Format("20060102150405"), t.Nanosecond()/int(time.Millisecond))
	n, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: timestamp %q: %v", ErrInvalidArgument, stamp, err)
	}
	return Base36(n)
}

// New returns the identifier for the current wall-clock time.
func New() (string, error) {
	return FromTime(time.Now())
}
