package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/oshokin/trackgrab/internal/catalog"
	"github.com/oshokin/trackgrab/internal/config"
	"github.com/oshokin/trackgrab/internal/fstime"
	"github.com/oshokin/trackgrab/internal/ranking"
	"github.com/oshokin/trackgrab/internal/scheduler"
	"github.com/oshokin/trackgrab/internal/tagger"
)

// downloadPollInterval is how often RunDownload checks the job's status
// while rendering the CLI progress indicator.
const downloadPollInterval = 500 * time.Millisecond

// RunDownload enqueues a single track's download and blocks until it
// reaches a terminal state, rendering a progress bar the same way the
// teacher shows one for a single-worker download: an indeterminate spinner,
// since the acquisition pipeline reports job state transitions rather than
// byte-level progress once it's running as a background worker pool.
func RunDownload(ctx context.Context, cfg *config.Config, trackID int64, candidateID *int64, force bool) (*catalog.Download, error) {
	store, err := openStoreOnly(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close() //nolint:errcheck // best effort on the command exit path.

	ranker, err := ranking.NewCachedRanker(ranking.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("build ranker: %w", err)
	}

	extractorClient, err := buildExtractor(cfg)
	if err != nil {
		return nil, fmt.Errorf("build extractor client: %w", err)
	}

	tagProcessor := tagger.NewTagProcessor(newCoverFetcher())
	sched := scheduler.New(cfg, store, extractorClient, ranker, tagProcessor, fstime.NewSetter())
	defer sched.StopAll(ctx)

	download, err := sched.Enqueue(ctx, trackID, candidateID, force)
	if err != nil {
		return nil, fmt.Errorf("enqueue download: %w", err)
	}

	bar := progressbar.Default(-1, "Downloading")
	defer bar.Close() //nolint:errcheck // best effort on the command exit path.

	return awaitTerminal(ctx, store, bar, download.ID)
}

func awaitTerminal(
	ctx context.Context,
	store catalog.Store,
	bar *progressbar.ProgressBar,
	downloadID int64,
) (*catalog.Download, error) {
	ticker := time.NewTicker(downloadPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			download, err := store.GetDownload(ctx, downloadID)
			if err != nil {
				return nil, err
			}

			bar.Add(1) //nolint:errcheck // cosmetic only.

			switch download.Status {
			case catalog.DownloadStatusDone, catalog.DownloadStatusAlready:
				return download, nil
			case catalog.DownloadStatusFailed:
				return download, errors.New(derefErrorMessage(download))
			case catalog.DownloadStatusSkipped:
				return download, errors.New("download was skipped")
			}
		}
	}
}

func derefErrorMessage(d *catalog.Download) string {
	if d.ErrorMessage == nil {
		return "download failed"
	}

	return *d.ErrorMessage
}
