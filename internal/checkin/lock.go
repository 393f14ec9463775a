package checkin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LockFileName is created inside the inbox while a run is active.
const LockFileName = ".mediashelf.lock"

const lockRetryDelay = 100 * time.Millisecond

// ErrLocked reports that another run holds the inbox lock.
var ErrLocked = errors.New("inbox is locked by another check-in run")

// acquireLock takes the exclusive inbox lock, waiting up to timeout.
func acquireLock(ctx context.Context, inbox string, timeout time.Duration) (*flock.Flock, error) {
	path := filepath.Join(inbox, LockFileName)
	lock := flock.New(path)

	if timeout <= 0 {
		timeout = lockRetryDelay
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := lock.TryLockContext(waitCtx, lockRetryDelay)
	if ok {
		return lock, nil
	}
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("acquire inbox lock %s: %w", path, err)
	}
	return nil, fmt.Errorf("%w: %s", ErrLocked, path)
}
