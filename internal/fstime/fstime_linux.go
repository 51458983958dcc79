//go:build linux

package fstime

import (
	"context"
	"time"

	"github.com/oshokin/trackgrab/internal/logger"
)

// setCreationTime is a no-op on Linux: no common filesystem exposes a
// settable birth time through a stable syscall across distributions.
// Logged at debug level since this is expected, not an error.
func setCreationTime(ctx context.Context, path string, _ time.Time) {
	logger.Debugf(ctx, "creation time not settable on linux, skipping for %q", path)
}
