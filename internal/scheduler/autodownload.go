package scheduler

import (
	"context"

	"github.com/oshokin/trackgrab/internal/catalog"
	"github.com/oshokin/trackgrab/internal/extractor"
	"github.com/oshokin/trackgrab/internal/logger"
	"github.com/oshokin/trackgrab/internal/ranking"
)

// AutoDownloadStatus is the immediate response to an auto-download request;
// the bulk work itself continues asynchronously.
type AutoDownloadStatus struct {
	Status      string
	TotalTracks int
}

// AutoDownloadPlaylist resolves every playlist track that still needs a
// library file, searching and auto-choosing a candidate for ones without
// one, then enqueueing a download for each. It returns immediately with a
// track count; the actual searching and enqueueing happens in background
// goroutines bounded by searchSem, mirroring the teacher's
// downloadTracksConcurrently fan-out but reusing the scheduler's own queue
// as the download-side bound instead of a second semaphore.
func (s *Scheduler) AutoDownloadPlaylist(ctx context.Context, playlistID int64) (*AutoDownloadStatus, error) {
	links, err := s.store.ListPlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	pending := make([]*catalog.PlaylistTrack, 0, len(links))

	for _, link := range links {
		if file, err := s.store.GetLibraryFileForTrack(ctx, link.TrackID); err == nil && file != nil {
			continue
		}

		pending = append(pending, link)
	}

	status := &AutoDownloadStatus{Status: "processing", TotalTracks: len(links)}

	go s.autoDownloadAsync(pending)

	return status, nil
}

func (s *Scheduler) autoDownloadAsync(links []*catalog.PlaylistTrack) {
	for _, link := range links {
		link := link

		s.searchSem <- struct{}{}

		go func() {
			defer func() { <-s.searchSem }()

			s.autoDownloadTrack(context.Background(), link.TrackID)
		}()
	}
}

func (s *Scheduler) autoDownloadTrack(ctx context.Context, trackID int64) {
	track, err := s.store.GetTrack(ctx, trackID)
	if err != nil {
		logger.Errorf(ctx, "auto-download: failed to load track %d: %v", trackID, err)
		return
	}

	if chosen, err := s.store.GetChosenCandidate(ctx, trackID); err == nil && chosen != nil {
		if _, enqueueErr := s.Enqueue(ctx, trackID, &chosen.ID, false); enqueueErr != nil {
			logger.Errorf(ctx, "auto-download: failed to enqueue track %d: %v", trackID, enqueueErr)
		}

		return
	}

	raw, err := s.extractor.Search(ctx, extractor.SearchQuery{Artists: track.Artists, Title: track.Title}, extractor.SearchOptions{
		MaxPages:  s.cfg.YoutubeSearchMaxPages,
		PageSize:  s.cfg.YoutubeSearchPageSize,
		StopScore: s.cfg.YoutubeSearchPageStopThreshold,
		Timeout:   s.cfg.ParsedYoutubeSearchTimeout,
	})
	if err != nil || len(raw) == 0 {
		_ = s.store.MarkTrackSearchedNotFound(ctx, trackID, true)
		return
	}

	candidates := make([]ranking.RawCandidate, 0, len(raw))
	for _, r := range raw {
		candidates = append(candidates, ranking.RawCandidate{
			ID:          r.ExternalID,
			Title:       r.Title,
			Channel:     r.Channel,
			DurationSec: r.DurationSec,
		})
	}

	ranked := s.ranker.Rank(ranking.Query{
		Artists:    track.Artists,
		Title:      track.Title,
		DurationMs: track.DurationMs,
	}, candidates)

	if len(ranked) == 0 || ranked[0].Score < s.cfg.MinAutochooseScore {
		_ = s.store.MarkTrackSearchedNotFound(ctx, trackID, true)
		return
	}

	top := ranked[0]

	persisted, err := s.persistCandidates(ctx, trackID, raw, ranked)
	if err != nil {
		logger.Errorf(ctx, "auto-download: failed to persist candidates for track %d: %v", trackID, err)
		return
	}

	var topID int64

	for _, p := range persisted {
		if p.ExternalID == top.ID {
			topID = p.ID
			break
		}
	}

	if topID == 0 {
		return
	}

	if err := s.store.ChooseCandidate(ctx, trackID, topID); err != nil {
		logger.Errorf(ctx, "auto-download: failed to choose candidate for track %d: %v", trackID, err)
		return
	}

	if _, err := s.Enqueue(ctx, trackID, &topID, false); err != nil {
		logger.Errorf(ctx, "auto-download: failed to enqueue track %d: %v", trackID, err)
	}
}

func (s *Scheduler) persistCandidates(
	ctx context.Context,
	trackID int64,
	raw []extractor.RawCandidate,
	ranked []ranking.Ranked,
) ([]*catalog.SearchCandidate, error) {
	byExternalID := make(map[string]extractor.RawCandidate, len(raw))
	for _, r := range raw {
		byExternalID[r.ExternalID] = r
	}

	persisted := make([]*catalog.SearchCandidate, 0, len(ranked))

	for _, r := range ranked {
		source, ok := byExternalID[r.ID]
		if !ok {
			continue
		}

		channel := source.Channel

		created, err := s.store.CreateCandidate(ctx, &catalog.SearchCandidate{
			TrackID:     trackID,
			Provider:    "youtube",
			ExternalID:  source.ExternalID,
			URL:         source.URL,
			Title:       source.Title,
			Channel:     &channel,
			DurationSec: source.DurationSec,
			Score:       r.Score,
		})
		if err != nil {
			return nil, err
		}

		persisted = append(persisted, created)
	}

	return persisted, nil
}
