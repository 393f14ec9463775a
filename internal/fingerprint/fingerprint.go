// Package fingerprint computes the SHA-256 content hashes used as the catalog
// deduplication key.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ChunkSize is the read size used while hashing.
const ChunkSize = 32 * 1024

// ErrUnavailable reports that a file could not be read to completion. An
// unavailable fingerprint is never a valid deduplication key.
var ErrUnavailable = errors.New("fingerprint unavailable")

// File streams path through SHA-256 and returns the lowercase hex digest.
// On failure it returns "" and an error wrapping ErrUnavailable.
func File(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		n, readErr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return "", fmt.Errorf("%w: read %s: %w", ErrUnavailable, path, readErr)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Bytes returns the lowercase hex SHA-256 digest of data.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
