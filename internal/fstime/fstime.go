package fstime

import (
	"context"
	"os"
	"time"
)

// Setter stamps a file's mtime and, where the platform supports it,
// creation time. mtime setting always applies via os.Chtimes; creation
// time is best-effort per platform and never returns an error to the
// caller — failures are logged by the implementation.
type Setter interface {
	SetTimestamps(ctx context.Context, path string, mtime, createdAt time.Time) error
}

// setterImpl applies os.Chtimes for mtime and delegates creation-time
// setting to the platform-specific setCreationTime function.
type setterImpl struct{}

// NewSetter returns the platform-appropriate Setter.
func NewSetter() Setter {
	return &setterImpl{}
}

func (s *setterImpl) SetTimestamps(ctx context.Context, path string, mtime, createdAt time.Time) error {
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		return err
	}

	setCreationTime(ctx, path, createdAt)

	return nil
}
