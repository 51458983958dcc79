//go:build windows

package fstime

import (
	"context"
	"time"

	"golang.org/x/sys/windows"

	"github.com/oshokin/trackgrab/internal/logger"
)

// setCreationTime uses the Windows API's native per-file creation time
// field via golang.org/x/sys/windows, the only platform in this set where
// creation time is a first-class, directly settable file attribute.
func setCreationTime(ctx context.Context, path string, createdAt time.Time) {
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		logger.Warnf(ctx, "failed to convert path %q: %v", path, err)
		return
	}

	handle, err := windows.CreateFile(
		pathPtr,
		windows.FILE_WRITE_ATTRIBUTES,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		logger.Warnf(ctx, "failed to open %q for creation-time update: %v", path, err)
		return
	}
	defer windows.CloseHandle(handle) //nolint:errcheck // best effort on the failure path.

	ft := windows.NsecToFiletime(createdAt.UnixNano())

	if err := windows.SetFileTime(handle, &ft, nil, nil); err != nil {
		logger.Warnf(ctx, "failed to set creation time on %q: %v", path, err)
	}
}
