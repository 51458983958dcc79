package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fakeClient is a first-class test seam backing YOUTUBE_SEARCH_FAKE and
// DOWNLOAD_FAKE: it returns canned candidates and writes placeholder files
// instead of shelling out. Generalized from the teacher's scattered
// cfg.DryRun branches in downloadAndSaveTrack into one dedicated
// implementation of the same Client interface the real one satisfies.
type fakeClient struct {
	mu         sync.Mutex
	fixtures   map[string][]RawCandidate
	downloaded []string
}

// NewFakeClient builds a Client that never touches the network or a
// subprocess. fixtures maps an "artists|title" query key (see FixtureKey)
// to the canned candidates Search should return for it; an empty or
// missing key returns a single generic fallback candidate so tests can
// exercise the ranking/scheduler paths without hand-authoring a fixture
// for every query.
func NewFakeClient(fixtures map[string][]RawCandidate) Client {
	return &fakeClient{fixtures: fixtures}
}

// FixtureKey builds the lookup key NewFakeClient's fixtures map uses.
func FixtureKey(artists, title string) string {
	return artists + "|" + title
}

func (c *fakeClient) Search(_ context.Context, query SearchQuery, _ SearchOptions) ([]RawCandidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := FixtureKey(query.Artists, query.Title)

	if hits, ok := c.fixtures[key]; ok {
		return hits, nil
	}

	duration := int64(240)

	return []RawCandidate{
		{
			ExternalID:  "fake-" + key,
			URL:         "https://example.invalid/watch?v=fake-" + key,
			Title:       query.Artists + " - " + query.Title,
			Channel:     query.Artists + " - Topic",
			DurationSec: &duration,
		},
	}, nil
}

// Download writes a small placeholder file instead of invoking yt-dlp, and
// computes a real checksum over that placeholder so downstream tagging and
// library-file bookkeeping exercise their real code paths.
func (c *fakeClient) Download(_ context.Context, ref string, opts DownloadOptions) (*DownloadResult, error) {
	c.mu.Lock()
	c.downloaded = append(c.downloaded, ref)
	c.mu.Unlock()

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	container := opts.PreferredAudioFormat
	if container == "" {
		container = "mp3"
	}

	filePath := filepath.Join(opts.OutputDir, sanitizeRefForFilename(ref)+"."+container)

	placeholder := []byte("trackgrab-fixture:" + ref)
	if err := os.WriteFile(filePath, placeholder, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write placeholder file: %w", err)
	}

	sum := sha256.Sum256(placeholder)

	return &DownloadResult{
		Filepath:  filePath,
		Container: container,
		Bytes:     int64(len(placeholder)),
		Checksum:  hex.EncodeToString(sum[:]),
	}, nil
}

func sanitizeRefForFilename(ref string) string {
	out := make([]rune, 0, len(ref))

	for _, r := range ref {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}

	return string(out)
}
