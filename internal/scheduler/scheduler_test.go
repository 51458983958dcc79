package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/trackgrab/internal/catalog"
	"github.com/oshokin/trackgrab/internal/config"
	"github.com/oshokin/trackgrab/internal/extractor"
	"github.com/oshokin/trackgrab/internal/fstime"
	"github.com/oshokin/trackgrab/internal/ranking"
	"github.com/oshokin/trackgrab/internal/tagger"
)

// stubTagger avoids exercising the real MP3/MP4/FLAC writers, which expect
// a well-formed container; the fake extractor client writes a placeholder
// file instead.
type stubTagger struct{}

func (stubTagger) WriteTags(_ context.Context, _ *tagger.WriteTagsRequest) (*tagger.WriteTagsResult, error) {
	return &tagger.WriteTagsResult{Checksum: "deadbeef"}, nil
}

// stubFSTime no-ops instead of touching real file timestamps, keeping the
// test independent of the host platform's fstime backend.
type stubFSTime struct{}

func (stubFSTime) SetTimestamps(_ context.Context, _ string, _, _ time.Time) error {
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, catalog.Store, extractor.Client) {
	t.Helper()

	store, err := catalog.Open(context.Background(), "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fakeExtractor := extractor.NewFakeClient(nil)

	ranker, err := ranking.NewCachedRanker(ranking.DefaultConfig())
	require.NoError(t, err)

	cfg := &config.Config{
		LibraryDir:             t.TempDir(),
		MaxConcurrentDownloads: 2,
		SearchConcurrency:      2,
		HistoryKeep:            10,
		RetryAttemptsCount:     1,
		MinAutochooseScore:     0.5,
		DisableDownloadWorker:  false,
	}

	s := New(cfg, store, fakeExtractor, ranker, stubTagger{}, stubFSTime{})
	t.Cleanup(func() { s.StopAll(context.Background()) })

	return s, store, fakeExtractor
}

func seedTrackWithCandidate(t *testing.T, store catalog.Store) (*catalog.Track, *catalog.SearchCandidate) {
	t.Helper()

	ctx := context.Background()

	track, err := store.CreateTrack(ctx, &catalog.Track{
		Artists:           "Block & Crown",
		Title:             "Lonely Heart",
		NormalizedArtists: "block & crown",
		NormalizedTitle:   "lonely heart",
	})
	require.NoError(t, err)

	candidate, err := store.CreateCandidate(ctx, &catalog.SearchCandidate{
		TrackID:    track.ID,
		Provider:   "youtube",
		ExternalID: "yt-1",
		URL:        "https://example.invalid/watch?v=1",
		Title:      "Block & Crown - Lonely Heart",
		Score:      0.9,
	})
	require.NoError(t, err)

	return track, candidate
}

func TestEnqueue_RunsJobToCompletion(t *testing.T) {
	t.Parallel()

	s, store, _ := newTestScheduler(t)
	ctx := context.Background()

	track, candidate := seedTrackWithCandidate(t, store)

	download, err := s.Enqueue(ctx, track.ID, &candidate.ID, false)
	require.NoError(t, err)
	require.NotZero(t, download.ID)

	require.Eventually(t, func() bool {
		d, err := store.GetDownload(ctx, download.ID)
		return err == nil && d.Status == catalog.DownloadStatusDone
	}, 2*time.Second, 10*time.Millisecond)

	final, err := store.GetDownload(ctx, download.ID)
	require.NoError(t, err)
	require.NotNil(t, final.Filepath)
	assert.FileExists(t, *final.Filepath)

	lib, err := store.GetLibraryFileForTrack(ctx, track.ID)
	require.NoError(t, err)
	assert.Equal(t, *final.Filepath, lib.Filepath)
}

func TestEnqueue_DedupShortCircuitsToAlready(t *testing.T) {
	t.Parallel()

	s, store, _ := newTestScheduler(t)
	ctx := context.Background()

	track, candidate := seedTrackWithCandidate(t, store)

	first, err := s.Enqueue(ctx, track.ID, &candidate.ID, false)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		d, err := store.GetDownload(ctx, first.ID)
		return err == nil && d.Status == catalog.DownloadStatusDone
	}, 2*time.Second, 10*time.Millisecond)

	second, err := s.Enqueue(ctx, track.ID, &candidate.ID, false)
	require.NoError(t, err)
	assert.Equal(t, catalog.DownloadStatusAlready, second.Status)
}

func TestEnqueue_RapidDoubleEnqueueShortCircuitsToAlready(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		LibraryDir:             t.TempDir(),
		MaxConcurrentDownloads: 1,
		SearchConcurrency:      1,
		HistoryKeep:            10,
		RetryAttemptsCount:     1,
		MinAutochooseScore:     0.5,
		DisableDownloadWorker:  true,
	}

	store, err := catalog.Open(context.Background(), "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ranker, err := ranking.NewCachedRanker(ranking.DefaultConfig())
	require.NoError(t, err)

	s := New(cfg, store, extractor.NewFakeClient(nil), ranker, stubTagger{}, stubFSTime{})
	t.Cleanup(func() { s.StopAll(context.Background()) })

	ctx := context.Background()
	track, candidate := seedTrackWithCandidate(t, store)

	// With the worker pool disabled, the first Enqueue's row is still
	// queued (not done) when the second call races it — this is the
	// scenario the spec's round-trip property targets.
	first, err := s.Enqueue(ctx, track.ID, &candidate.ID, false)
	require.NoError(t, err)
	assert.Equal(t, catalog.DownloadStatusQueued, first.Status)

	second, err := s.Enqueue(ctx, track.ID, &candidate.ID, false)
	require.NoError(t, err)
	assert.Equal(t, catalog.DownloadStatusAlready, second.Status)
}

func TestEnqueue_ForceWithRunningJobRefuses(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		LibraryDir:             t.TempDir(),
		MaxConcurrentDownloads: 1,
		SearchConcurrency:      1,
		HistoryKeep:            10,
		RetryAttemptsCount:     1,
		MinAutochooseScore:     0.5,
		DisableDownloadWorker:  true,
	}

	store, err := catalog.Open(context.Background(), "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ranker, err := ranking.NewCachedRanker(ranking.DefaultConfig())
	require.NoError(t, err)

	s := New(cfg, store, extractor.NewFakeClient(nil), ranker, stubTagger{}, stubFSTime{})
	t.Cleanup(func() { s.StopAll(context.Background()) })

	ctx := context.Background()
	track, candidate := seedTrackWithCandidate(t, store)

	download, err := s.Enqueue(ctx, track.ID, &candidate.ID, false)
	require.NoError(t, err)

	require.NoError(t, store.UpdateDownload(ctx, &catalog.Download{
		ID: download.ID, TrackID: track.ID, CandidateID: &candidate.ID,
		Status: catalog.DownloadStatusRunning,
	}))

	_, err = s.Enqueue(ctx, track.ID, &candidate.ID, true)
	assert.ErrorIs(t, err, ErrDownloadInProgress)
}

func TestEnqueue_NoCandidateFails(t *testing.T) {
	t.Parallel()

	s, store, _ := newTestScheduler(t)
	ctx := context.Background()

	track, err := store.CreateTrack(ctx, &catalog.Track{
		Artists: "Nobody", Title: "Unsearched",
		NormalizedArtists: "nobody", NormalizedTitle: "unsearched",
	})
	require.NoError(t, err)

	_, err = s.Enqueue(ctx, track.ID, nil, false)
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestCancel_RefusesRunningJob(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		LibraryDir:             t.TempDir(),
		MaxConcurrentDownloads: 1,
		SearchConcurrency:      1,
		HistoryKeep:            10,
		RetryAttemptsCount:     1,
		MinAutochooseScore:     0.5,
		DisableDownloadWorker:  true,
	}

	store, err := catalog.Open(context.Background(), "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ranker, err := ranking.NewCachedRanker(ranking.DefaultConfig())
	require.NoError(t, err)

	s := New(cfg, store, extractor.NewFakeClient(nil), ranker, stubTagger{}, stubFSTime{})
	t.Cleanup(func() { s.StopAll(context.Background()) })

	ctx := context.Background()
	track, candidate := seedTrackWithCandidate(t, store)

	download, err := s.Enqueue(ctx, track.ID, &candidate.ID, false)
	require.NoError(t, err)

	require.NoError(t, store.UpdateDownload(ctx, &catalog.Download{
		ID: download.ID, TrackID: track.ID, CandidateID: &candidate.ID,
		Status: catalog.DownloadStatusRunning,
	}))

	err = s.Cancel(ctx, download.ID)
	assert.ErrorIs(t, err, ErrCancelRefused)
}

func TestCancel_SkipsQueuedJob(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		LibraryDir:             t.TempDir(),
		MaxConcurrentDownloads: 1,
		SearchConcurrency:      1,
		HistoryKeep:            10,
		RetryAttemptsCount:     1,
		MinAutochooseScore:     0.5,
		DisableDownloadWorker:  true,
	}

	store, err := catalog.Open(context.Background(), "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ranker, err := ranking.NewCachedRanker(ranking.DefaultConfig())
	require.NoError(t, err)

	s := New(cfg, store, extractor.NewFakeClient(nil), ranker, stubTagger{}, stubFSTime{})
	t.Cleanup(func() { s.StopAll(context.Background()) })

	ctx := context.Background()
	track, candidate := seedTrackWithCandidate(t, store)

	download, err := s.Enqueue(ctx, track.ID, &candidate.ID, false)
	require.NoError(t, err)

	require.NoError(t, s.Cancel(ctx, download.ID))

	final, err := store.GetDownload(ctx, download.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.DownloadStatusSkipped, final.Status)
}

func TestCancel_SecondCallOnSkippedJobIsNoop(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		LibraryDir:             t.TempDir(),
		MaxConcurrentDownloads: 1,
		SearchConcurrency:      1,
		HistoryKeep:            10,
		RetryAttemptsCount:     1,
		MinAutochooseScore:     0.5,
		DisableDownloadWorker:  true,
	}

	store, err := catalog.Open(context.Background(), "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ranker, err := ranking.NewCachedRanker(ranking.DefaultConfig())
	require.NoError(t, err)

	s := New(cfg, store, extractor.NewFakeClient(nil), ranker, stubTagger{}, stubFSTime{})
	t.Cleanup(func() { s.StopAll(context.Background()) })

	ctx := context.Background()
	track, candidate := seedTrackWithCandidate(t, store)

	download, err := s.Enqueue(ctx, track.ID, &candidate.ID, false)
	require.NoError(t, err)

	require.NoError(t, s.Cancel(ctx, download.ID))
	require.NoError(t, s.Cancel(ctx, download.ID))

	final, err := store.GetDownload(ctx, download.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.DownloadStatusSkipped, final.Status)
}

func TestStopAll_DrainsQueueAsSkipped(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		LibraryDir:             t.TempDir(),
		MaxConcurrentDownloads: 1,
		SearchConcurrency:      1,
		HistoryKeep:            10,
		RetryAttemptsCount:     1,
		MinAutochooseScore:     0.5,
		DisableDownloadWorker:  true,
	}

	store, err := catalog.Open(context.Background(), "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ranker, err := ranking.NewCachedRanker(ranking.DefaultConfig())
	require.NoError(t, err)

	s := New(cfg, store, extractor.NewFakeClient(nil), ranker, stubTagger{}, stubFSTime{})

	ctx := context.Background()
	track, candidate := seedTrackWithCandidate(t, store)

	download, err := s.Enqueue(ctx, track.ID, &candidate.ID, false)
	require.NoError(t, err)

	s.StopAll(ctx)

	final, err := store.GetDownload(ctx, download.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.DownloadStatusSkipped, final.Status)
}

func TestAutoDownloadPlaylist_GatesOnMinScore(t *testing.T) {
	t.Parallel()

	s, store, _ := newTestScheduler(t)
	s.cfg.MinAutochooseScore = 999 // unreachable score forces searched_not_found

	ctx := context.Background()

	track, err := store.CreateTrack(ctx, &catalog.Track{
		Artists: "Some Artist", Title: "Some Title",
		NormalizedArtists: "some artist", NormalizedTitle: "some title",
	})
	require.NoError(t, err)

	playlist, err := store.CreatePlaylist(ctx, &catalog.Playlist{
		Provider: "manual", Name: "Test Playlist",
	})
	require.NoError(t, err)

	require.NoError(t, store.UpsertPlaylistTrack(ctx, &catalog.PlaylistTrack{
		PlaylistID: playlist.ID, TrackID: track.ID,
	}))

	status, err := s.AutoDownloadPlaylist(ctx, playlist.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalTracks)

	require.Eventually(t, func() bool {
		reloaded, err := store.GetTrack(ctx, track.ID)
		return err == nil && reloaded.SearchedNotFound
	}, 2*time.Second, 10*time.Millisecond)
}

func TestComputeTargetFilename_AppendsSuffixOnCollision(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestScheduler(t)

	ctx := context.Background()
	track := &catalog.Track{Artists: "Artist", Title: "Title"}

	first, err := s.computeTargetFilename(ctx, track, "mp3")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(first, []byte("x"), 0o644))

	second, err := s.computeTargetFilename(ctx, track, "mp3")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, filepath.Join(s.cfg.LibraryDir, "Artist - Title (2).mp3"), second)
}

var _ fstime.Setter = stubFSTime{}
