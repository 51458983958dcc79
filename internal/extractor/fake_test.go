package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClient_SearchReturnsFixture(t *testing.T) {
	t.Parallel()

	duration := int64(180)
	fixtures := map[string][]RawCandidate{
		FixtureKey("Block & Crown", "Lonely Heart"): {
			{ExternalID: "abc", URL: "https://example.invalid/abc", Title: "Block & Crown - Lonely Heart", DurationSec: &duration},
		},
	}

	client := NewFakeClient(fixtures)

	hits, err := client.Search(context.Background(), SearchQuery{Artists: "Block & Crown", Title: "Lonely Heart"}, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "abc", hits[0].ExternalID)
}

func TestFakeClient_SearchFallsBackWithoutFixture(t *testing.T) {
	t.Parallel()

	client := NewFakeClient(nil)

	hits, err := client.Search(context.Background(), SearchQuery{Artists: "Unknown", Title: "Song"}, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Title, "Unknown")
}

func TestFakeClient_DownloadWritesPlaceholderWithChecksum(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	client := NewFakeClient(nil)

	result, err := client.Download(context.Background(), "fake-ref-1", DownloadOptions{
		OutputDir:             dir,
		PreferredAudioFormat: "mp3",
	})
	require.NoError(t, err)
	assert.Equal(t, "mp3", result.Container)
	assert.NotEmpty(t, result.Checksum)
	assert.Equal(t, filepath.Dir(result.Filepath), dir)

	data, err := os.ReadFile(result.Filepath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fake-ref-1")
}
