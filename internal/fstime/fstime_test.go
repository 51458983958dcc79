package fstime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetTimestamps_SetsMtime(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "track.mp3")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	setter := NewSetter()
	mtime := time.Date(2022, time.March, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, setter.SetTimestamps(context.Background(), path, mtime, mtime))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.WithinDuration(t, mtime, info.ModTime(), time.Second)
}

func TestSetTimestamps_MissingFileFails(t *testing.T) {
	t.Parallel()

	setter := NewSetter()
	now := time.Now()

	err := setter.SetTimestamps(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"), now, now)
	assert.Error(t, err)
}
