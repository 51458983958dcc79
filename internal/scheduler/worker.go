package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/trackgrab/internal/catalog"
	"github.com/oshokin/trackgrab/internal/extractor"
	"github.com/oshokin/trackgrab/internal/logger"
	"github.com/oshokin/trackgrab/internal/tagger"
	"github.com/oshokin/trackgrab/internal/utils"
)

// runWorker is one of the scheduler's pool goroutines. It pops job ids
// until the queue closes or StopAll signals, mirroring the teacher's
// semaphore + sync.WaitGroup concurrency idiom but as a persistent loop
// instead of a one-shot batch.
func (s *Scheduler) runWorker(index int) {
	defer s.workerWG.Done()

	for {
		select {
		case <-s.workerStop:
			return
		default:
		}

		id, ok := s.queue.pop()
		if !ok {
			return
		}

		if s.queue.consumeSkipped(id) {
			continue
		}

		select {
		case <-s.workerStop:
			s.failForShutdown(id)
			return
		default:
		}

		s.processDownload(context.Background(), id, index)
	}
}

func (s *Scheduler) failForShutdown(downloadID int64) {
	ctx := context.Background()

	download, err := s.store.GetDownload(ctx, downloadID)
	if err != nil {
		return
	}

	msg := "scheduler stopped"
	download.Status = catalog.DownloadStatusFailed
	download.ErrorMessage = &msg
	_ = s.store.UpdateDownload(ctx, download)
	s.jobs.remove(downloadID)
}

// processDownload implements spec §4.6's worker loop steps 2-9.
func (s *Scheduler) processDownload(ctx context.Context, downloadID int64, workerIndex int) {
	download, err := s.store.GetDownload(ctx, downloadID)
	if err != nil {
		logger.Errorf(ctx, "worker %d: download %d vanished: %v", workerIndex, downloadID, err)
		return
	}

	if download.Status != catalog.DownloadStatusQueued {
		s.jobs.remove(downloadID)
		return
	}

	now := time.Now().UTC()
	download.Status = catalog.DownloadStatusRunning
	download.StartedAt = &now

	if err := s.store.UpdateDownload(ctx, download); err != nil {
		logger.Errorf(ctx, "worker %d: failed to mark download %d running: %v", workerIndex, downloadID, err)
		return
	}

	if failErr := s.runDownloadSteps(ctx, download); failErr != nil {
		s.failDownload(ctx, download, failErr)
		s.jobs.remove(downloadID)

		return
	}

	s.jobs.remove(downloadID)
}

func (s *Scheduler) failDownload(ctx context.Context, download *catalog.Download, cause error) {
	msg := cause.Error()
	download.Status = catalog.DownloadStatusFailed
	download.ErrorMessage = &msg
	finished := time.Now().UTC()
	download.FinishedAt = &finished

	if err := s.store.UpdateDownload(ctx, download); err != nil {
		logger.Errorf(ctx, "failed to persist failure for download %d: %v", download.ID, err)
	}
}

func (s *Scheduler) runDownloadSteps(ctx context.Context, download *catalog.Download) error {
	track, err := s.store.GetTrack(ctx, download.TrackID)
	if err != nil {
		return fmt.Errorf("resolve track: %w", err)
	}

	candidateURL, candidate, err := s.resolveCandidateURL(ctx, download)
	if err != nil {
		return fmt.Errorf("resolve candidate: %w", err)
	}

	result, err := s.downloadWithRetries(ctx, candidateURL)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	targetPath, err := s.computeTargetFilename(ctx, track, result.Container)
	if err != nil {
		return fmt.Errorf("compute target filename: %w", err)
	}

	if err := os.Rename(result.Filepath, targetPath); err != nil {
		return fmt.Errorf("move downloaded file: %w", err)
	}

	tagResult, err := s.tagger.WriteTags(ctx, &tagger.WriteTagsRequest{
		TrackPath:          targetPath,
		ExtractorCoverPath: result.ThumbnailPath,
		SpotifyCoverURL:    derefString(track.CoverURL),
		Artist:             track.Artists,
		Title:              track.Title,
		Album:              derefString(track.Album),
		Genre:              derefString(track.Genre),
		BPM:                track.BPM,
		ReleaseDate:        derefString(track.ReleaseDate),
	})
	if err != nil {
		return fmt.Errorf("write tags: %w", err)
	}

	mtime, createdAt := s.resolveTimestamps(ctx, track)
	if err := s.fstime.SetTimestamps(ctx, targetPath, mtime, createdAt); err != nil {
		logger.Warnf(ctx, "failed to set timestamps on %q: %v", targetPath, err)
	}

	info, err := os.Stat(targetPath)
	if err != nil {
		return fmt.Errorf("stat downloaded file: %w", err)
	}

	fileSize := info.Size()

	if _, err := s.store.UpsertLibraryFile(ctx, &catalog.LibraryFile{
		TrackID:   track.ID,
		Filepath:  targetPath,
		FileSize:  &fileSize,
		FileMtime: &mtime,
		Checksum:  &tagResult.Checksum,
		Container: result.Container,
	}); err != nil {
		return fmt.Errorf("upsert library file: %w", err)
	}

	finished := time.Now().UTC()
	download.Status = catalog.DownloadStatusDone
	download.Filepath = &targetPath
	download.Format = &result.Container
	download.FilesizeBytes = &fileSize
	download.Checksum = &tagResult.Checksum
	download.FinishedAt = &finished

	if candidate != nil {
		id := candidate.ID
		download.CandidateID = &id
	}

	return s.store.UpdateDownload(ctx, download)
}

func (s *Scheduler) resolveCandidateURL(ctx context.Context, download *catalog.Download) (string, *catalog.SearchCandidate, error) {
	if download.CandidateID == nil {
		return "", nil, ErrNoCandidate
	}

	candidates, err := s.store.ListCandidatesForTrack(ctx, download.TrackID)
	if err != nil {
		return "", nil, err
	}

	for _, c := range candidates {
		if c.ID == *download.CandidateID {
			return c.URL, c, nil
		}
	}

	return "", nil, ErrNoCandidate
}

func (s *Scheduler) downloadWithRetries(ctx context.Context, ref string) (*extractor.DownloadResult, error) {
	var lastErr error

	attempts := int(s.cfg.RetryAttemptsCount)
	if attempts <= 0 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		result, err := s.extractor.Download(ctx, ref, extractor.DownloadOptions{
			OutputDir:             os.TempDir(),
			PreferredAudioFormat:  s.cfg.PreferredAudioFormat,
			ExtractorArgs:         s.cfg.DownloadYtdlpExtractorArgs,
			SpeedLimitBytesPerSec: s.cfg.ParsedDownloadSpeedLimit,
			EmbedThumbnail:        s.cfg.DownloadEmbedThumbnail,
		})
		if err == nil {
			return result, nil
		}

		lastErr = err

		if i < attempts-1 {
			logger.Warnf(ctx, "download attempt %d/%d failed, retrying: %v", i+1, attempts, err)
			utils.RandomPause(s.cfg.ParsedMinRetryPause, s.cfg.ParsedMaxRetryPause)
		}
	}

	return nil, lastErr
}

// computeTargetFilename renders the configured track filename template
// and appends a numeric suffix if the target already exists (spec §4.6
// step 6).
func (s *Scheduler) computeTargetFilename(ctx context.Context, track *catalog.Track, container string) (string, error) {
	tags := map[string]string{
		"artists": track.Artists,
		"title":   track.Title,
	}

	if track.Album != nil {
		tags["album"] = *track.Album
	}

	if track.ReleaseDate != nil {
		tags["releaseDate"] = *track.ReleaseDate
	}

	base := utils.SanitizeFilename(s.filename.Build(ctx, tags))
	candidate := filepath.Join(s.cfg.LibraryDir, base+"."+container)

	for suffix := 2; fileExists(candidate); suffix++ {
		candidate = filepath.Join(s.cfg.LibraryDir, fmt.Sprintf("%s (%d).%s", base, suffix, container))
	}

	return candidate, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// resolveTimestamps implements spec §4.6 step 8's fallback chains.
func (s *Scheduler) resolveTimestamps(ctx context.Context, track *catalog.Track) (mtime, createdAt time.Time) {
	mtime = s.resolveMtime(ctx, track)
	createdAt = s.resolveCreatedAt(track, mtime)

	return mtime, createdAt
}

func (s *Scheduler) resolveMtime(ctx context.Context, track *catalog.Track) time.Time {
	links, err := s.store.ListTrackPlaylists(ctx, track.ID)
	if err == nil {
		var latest time.Time

		for _, link := range links {
			if link.AddedAt != nil && link.AddedAt.After(latest) {
				latest = *link.AddedAt
			}
		}

		if !latest.IsZero() {
			return latest
		}
	}

	if track.SpotifyAddedAt != nil {
		return *track.SpotifyAddedAt
	}

	if track.ReleaseDate != nil {
		if t, err := parseReleaseDate(*track.ReleaseDate); err == nil {
			return t
		}
	}

	return time.Now().UTC()
}

func (s *Scheduler) resolveCreatedAt(track *catalog.Track, mtime time.Time) time.Time {
	if track.ReleaseDate != nil {
		if t, err := parseReleaseDate(*track.ReleaseDate); err == nil {
			return t
		}
	}

	return mtime
}

func parseReleaseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(s))
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
