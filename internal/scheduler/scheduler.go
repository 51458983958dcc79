package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oshokin/trackgrab/internal/catalog"
	"github.com/oshokin/trackgrab/internal/config"
	"github.com/oshokin/trackgrab/internal/extractor"
	"github.com/oshokin/trackgrab/internal/fstime"
	"github.com/oshokin/trackgrab/internal/logger"
	"github.com/oshokin/trackgrab/internal/naming"
	"github.com/oshokin/trackgrab/internal/ranking"
	"github.com/oshokin/trackgrab/internal/tagger"
)

// Scheduler is the acquisition pipeline's heart: a bounded worker pool
// pulling from a FIFO queue of Download ids, generalized from the
// teacher's one-shot downloadTracksConcurrently into a long-lived service
// with enqueue/cancel/introspection.
type Scheduler struct {
	cfg       *config.Config
	store     catalog.Store
	extractor extractor.Client
	ranker    *ranking.CachedRanker
	tagger    tagger.TagProcessor
	fstime    fstime.Setter
	filename  *naming.TrackFilenameBuilder

	queue *fifoQueue
	jobs  *jobTable

	searchSem chan struct{}

	workerWG      sync.WaitGroup
	workerStop    chan struct{}
	workerRestart sync.Mutex
	workerCount   int

	historyTicker *time.Ticker
	stopOnce      sync.Once
}

// New builds a Scheduler with cfg.MaxConcurrentDownloads workers, unless
// cfg.DisableDownloadWorker is set, in which case it starts with zero
// workers and jobs simply queue until RestartWorker is called.
func New(
	cfg *config.Config,
	store catalog.Store,
	extractorClient extractor.Client,
	ranker *ranking.CachedRanker,
	tagProcessor tagger.TagProcessor,
	timestampSetter fstime.Setter,
) *Scheduler {
	s := &Scheduler{
		cfg:        cfg,
		store:      store,
		extractor:  extractorClient,
		ranker:     ranker,
		tagger:     tagProcessor,
		fstime:     timestampSetter,
		filename:   naming.NewTrackFilenameBuilder(context.Background(), cfg.TrackFilenameTemplate),
		queue:      newFIFOQueue(),
		jobs:       newJobTable(),
		searchSem:  make(chan struct{}, maxInt64(cfg.SearchConcurrency, 1)),
		workerStop: make(chan struct{}),
	}

	if !cfg.DisableDownloadWorker {
		s.startWorkers(int(cfg.MaxConcurrentDownloads))
	}

	s.historyTicker = time.NewTicker(time.Hour)

	go s.historySweepLoop()

	return s
}

func maxInt64(v, floor int64) int64 {
	if v < floor {
		return floor
	}

	return v
}

func (s *Scheduler) startWorkers(n int) {
	if n <= 0 {
		n = 1
	}

	s.workerCount = n

	for i := 0; i < n; i++ {
		s.workerWG.Add(1)

		go s.runWorker(i)
	}
}

// Enqueue implements spec §4.6's enqueue contract: a dedup short-circuit
// against an existing LibraryFile, a second short-circuit against any
// non-terminal Download already in flight for the track, resolving
// candidateID from the chosen candidate when omitted, and persisting the
// Download row before returning.
func (s *Scheduler) Enqueue(ctx context.Context, trackID int64, candidateID *int64, force bool) (*catalog.Download, error) {
	s.queue.mu.Lock()
	stopped := s.queue.closed
	s.queue.mu.Unlock()

	if stopped {
		return nil, ErrSchedulerStopped
	}

	if !force {
		if existing, err := s.store.GetLibraryFileForTrack(ctx, trackID); err == nil && existing != nil {
			return s.store.CreateDownload(ctx, &catalog.Download{
				TrackID: trackID,
				Status:  catalog.DownloadStatusAlready,
			})
		}
	}

	inProgress, err := s.nonTerminalDownload(ctx, trackID)
	if err != nil {
		return nil, err
	}

	if inProgress != nil {
		if force {
			return nil, ErrDownloadInProgress
		}

		return s.store.CreateDownload(ctx, &catalog.Download{
			TrackID: trackID,
			Status:  catalog.DownloadStatusAlready,
		})
	}

	resolvedCandidateID, err := s.resolveCandidateID(ctx, trackID, candidateID)
	if err != nil {
		return nil, err
	}

	download, err := s.store.CreateDownload(ctx, &catalog.Download{
		TrackID:     trackID,
		CandidateID: &resolvedCandidateID,
		Status:      catalog.DownloadStatusQueued,
	})
	if err != nil {
		if errors.Is(err, catalog.ErrNonTerminalDownloadExists) {
			// A concurrent Enqueue won the race between our check above and
			// this insert; the partial unique index caught it.
			if force {
				return nil, ErrDownloadInProgress
			}

			return s.store.CreateDownload(ctx, &catalog.Download{
				TrackID: trackID,
				Status:  catalog.DownloadStatusAlready,
			})
		}

		return nil, err
	}

	s.jobs.put(&job{id: download.ID, trackID: trackID, candidateID: resolvedCandidateID})
	s.queue.push(download.ID)

	return download, nil
}

// nonTerminalDownload returns the track's queued or running Download, if
// any (spec §3's Download invariant: at most one non-terminal Download per
// track_id at any time).
func (s *Scheduler) nonTerminalDownload(ctx context.Context, trackID int64) (*catalog.Download, error) {
	downloads, err := s.store.ListDownloadsForTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}

	for _, d := range downloads {
		switch d.Status {
		case catalog.DownloadStatusQueued, catalog.DownloadStatusRunning:
			return d, nil
		}
	}

	return nil, nil
}

func (s *Scheduler) resolveCandidateID(ctx context.Context, trackID int64, candidateID *int64) (int64, error) {
	if candidateID != nil {
		return *candidateID, nil
	}

	chosen, err := s.store.GetChosenCandidate(ctx, trackID)
	if err != nil {
		if errors.Is(err, catalog.ErrCandidateNotFound) {
			return 0, ErrNoCandidate
		}

		return 0, err
	}

	return chosen.ID, nil
}

// Cancel accepts cancellation only while the job is queued (spec §4.6);
// a running job returns ErrCancelRefused, which callers surface as a
// conflict. Cancelling an already-skipped job is a no-op success, since
// skipped is itself the terminal state a prior Cancel produces (spec §8's
// idempotence property: cancelling the same job twice must not error).
func (s *Scheduler) Cancel(ctx context.Context, downloadID int64) error {
	download, err := s.store.GetDownload(ctx, downloadID)
	if err != nil {
		if errors.Is(err, catalog.ErrDownloadNotFound) {
			return ErrJobNotFound
		}

		return err
	}

	switch download.Status {
	case catalog.DownloadStatusQueued:
	case catalog.DownloadStatusSkipped:
		return nil
	case catalog.DownloadStatusRunning:
		return ErrCancelRefused
	default:
		return ErrCancelRefused
	}

	download.Status = catalog.DownloadStatusSkipped
	if err := s.store.UpdateDownload(ctx, download); err != nil {
		return err
	}

	s.queue.markSkipped(downloadID)
	s.jobs.remove(downloadID)

	return nil
}

// StopAll drains the queue (marking pending jobs skipped) and stops the
// worker pool. In-flight jobs are not interrupted: StopAll waits for them
// to finish, and each keeps the terminal state it reaches (spec §4.6).
func (s *Scheduler) StopAll(ctx context.Context) {
	s.stopOnce.Do(func() {
		pending := s.queue.drain()
		s.queue.close()

		for _, id := range pending {
			if download, err := s.store.GetDownload(ctx, id); err == nil && download.Status == catalog.DownloadStatusQueued {
				download.Status = catalog.DownloadStatusSkipped
				_ = s.store.UpdateDownload(ctx, download)
			}

			s.jobs.remove(id)
		}

		close(s.workerStop)
		s.workerWG.Wait()
		s.historyTicker.Stop()
	})
}

// RestartWorker relaunches the worker pool after StopAll, reopening the
// queue so new Enqueue calls are served again.
func (s *Scheduler) RestartWorker(n int) {
	s.workerRestart.Lock()
	defer s.workerRestart.Unlock()

	s.queue.reopen()
	s.workerStop = make(chan struct{})
	s.stopOnce = sync.Once{}
	s.startWorkers(n)
}

// Status returns a point-in-time snapshot of every job the scheduler
// currently tracks (queued or running); terminal jobs are read from the
// catalog directly by callers, since the scheduler drops them once
// persisted.
func (s *Scheduler) Status() []StatusEntry {
	jobs := s.jobs.all()
	entries := make([]StatusEntry, 0, len(jobs))

	for _, j := range jobs {
		candidateID := j.candidateID
		entries = append(entries, StatusEntry{
			DownloadID:  j.id,
			TrackID:     j.trackID,
			CandidateID: &candidateID,
		})
	}

	return entries
}

// Logs returns the most recent maxLines entries from the process-wide
// ring-buffer log, per spec §6's downloads/logs endpoint.
func (s *Scheduler) Logs(maxLines int) []logger.RingEntry {
	return logger.LogSnapshot(maxLines)
}

func (s *Scheduler) historySweepLoop() {
	for range s.historyTicker.C {
		ctx := context.Background()

		deleted, err := s.store.DeleteDownloadsOlderThanKeep(ctx, int(s.cfg.HistoryKeep))
		if err != nil {
			logger.Errorf(ctx, "history sweep failed: %v", err)
			continue
		}

		if deleted > 0 {
			logger.Infof(ctx, "history sweep pruned %d download row(s)", deleted)
		}
	}
}
