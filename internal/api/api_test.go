package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/trackgrab/internal/catalog"
	"github.com/oshokin/trackgrab/internal/config"
	"github.com/oshokin/trackgrab/internal/extractor"
	"github.com/oshokin/trackgrab/internal/ranking"
	"github.com/oshokin/trackgrab/internal/scheduler"
	"github.com/oshokin/trackgrab/internal/tagger"
)

type noopTagger struct{}

func (noopTagger) WriteTags(_ context.Context, _ *tagger.WriteTagsRequest) (*tagger.WriteTagsResult, error) {
	return &tagger.WriteTagsResult{}, nil
}

func newTestServer(t *testing.T) (*Server, catalog.Store) {
	t.Helper()

	store, err := catalog.Open(context.Background(), "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ranker, err := ranking.NewCachedRanker(ranking.DefaultConfig())
	require.NoError(t, err)

	cfg := &config.Config{
		LibraryDir:             t.TempDir(),
		MaxConcurrentDownloads: 1,
		SearchConcurrency:      1,
		HistoryKeep:            10,
		RetryAttemptsCount:     1,
		MinAutochooseScore:     0.5,
		CorsOrigins:            "*",
	}

	sched := scheduler.New(cfg, store, extractor.NewFakeClient(nil), ranker, noopTagger{}, nil)

	s := NewServer(cfg, store, ranker, extractor.NewFakeClient(nil), noopTagger{}, sched, nil)

	return s, store
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCreateAndGetTrack(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	body := `{"artists":"Daft Punk","title":"One More Time"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tracks", strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/tracks/1", nil)
	getRec := httptest.NewRecorder()

	s.Handler().ServeHTTP(getRec, getReq)

	require.Equal(t, http.StatusOK, getRec.Code)
}

func TestHandleGetTrack_NotFound(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tracks/999", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleEnqueueDownload_NoCandidate(t *testing.T) {
	t.Parallel()

	s, store := newTestServer(t)

	track, err := store.CreateTrack(context.Background(), &catalog.Track{
		Artists: "A", Title: "B", NormalizedArtists: "a", NormalizedTitle: "b",
	})
	require.NoError(t, err)

	body := fmt.Sprintf(`{"track_id":%d}`, track.ID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/downloads/enqueue", strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStreamLibraryFile_SupportsRange(t *testing.T) {
	t.Parallel()

	s, store := newTestServer(t)

	track, err := store.CreateTrack(context.Background(), &catalog.Track{
		Artists: "A", Title: "B", NormalizedArtists: "a", NormalizedTitle: "b",
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "song.flac")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	file, err := store.UpsertLibraryFile(context.Background(), &catalog.LibraryFile{
		TrackID: track.ID, Filepath: path, Container: "flac",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/library/files/%d/stream", file.ID), nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	require.Equal(t, "2345", rec.Body.String())
	require.Equal(t, "bytes 2-5/10", rec.Header().Get("Content-Range"))
}

func TestParseRange(t *testing.T) {
	t.Parallel()

	start, end, err := parseRange("bytes=0-3", 10)
	require.NoError(t, err)
	require.Equal(t, int64(0), start)
	require.Equal(t, int64(3), end)

	start, end, err = parseRange("bytes=-4", 10)
	require.NoError(t, err)
	require.Equal(t, int64(6), start)
	require.Equal(t, int64(9), end)

	_, _, err = parseRange("bytes=20-30", 10)
	require.Error(t, err)
}
