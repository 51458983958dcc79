//go:build darwin

package fstime

import (
	"context"
	"os/exec"
	"strconv"
	"time"

	"github.com/oshokin/trackgrab/internal/logger"
)

// setCreationTime shells out to SetFile (part of the Xcode command line
// tools), the conventional best-effort way to set HFS+/APFS birth time on
// macOS without cgo. Absence of the tool, or any failure, is logged and
// swallowed — creation time is cosmetic, never fatal.
func setCreationTime(ctx context.Context, path string, createdAt time.Time) {
	stamp := createdAt.Format("01/02/2006 15:04:05")

	cmd := exec.CommandContext(ctx, "SetFile", "-d", stamp, path)
	if err := cmd.Run(); err != nil {
		logger.Warnf(ctx, "failed to set creation time on %q (attempted %s): %v", path, strconv.Quote(stamp), err)
	}
}
