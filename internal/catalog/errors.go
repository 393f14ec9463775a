package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable reports that the store cannot be opened, read, or written.
	ErrUnavailable = errors.New("catalog store unavailable")
	// ErrConstraintViolation reports a rejected insert (duplicate id or
	// checksum, dangling foreign key, invalid record).
	ErrConstraintViolation = errors.New("catalog constraint violation")
	// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)

const (
	sqliteBusyCode       = 5
	sqliteConstraintCode = 19
)

func isConstraint(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteConstraintCode {
		return true
	}
	return strings.Contains(err.Error(), "constraint failed")
}

// classify maps a driver error onto the package sentinels.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConstraintViolation), errors.Is(err, ErrUnavailable):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isConstraint(err):
		return fmt.Errorf("%w: %s: %w", ErrConstraintViolation, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
	}
}
