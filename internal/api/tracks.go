package api

import (
	"net/http"

	"github.com/oshokin/trackgrab/internal/catalog"
	"github.com/oshokin/trackgrab/internal/normalize"
	"github.com/oshokin/trackgrab/internal/ranking"
)

// trackDTO is the explicit response shape for a Track, replacing any
// reflection-driven entity serialization (spec.md's redesign flag against
// runtime reflection over entity shapes).
type trackDTO struct {
	ID                int64    `json:"id"`
	Artists           string   `json:"artists"`
	Title             string   `json:"title"`
	NormalizedArtists string   `json:"normalized_artists"`
	NormalizedTitle   string   `json:"normalized_title"`
	DurationMs        *int64   `json:"duration_ms,omitempty"`
	ISRC              *string  `json:"isrc,omitempty"`
	Album             *string  `json:"album,omitempty"`
	CoverURL          *string  `json:"cover_url,omitempty"`
	Genre             *string  `json:"genre,omitempty"`
	BPM               *float64 `json:"bpm,omitempty"`
	ReleaseDate       *string  `json:"release_date,omitempty"`
	Explicit          bool     `json:"explicit"`
	SearchedNotFound  bool     `json:"searched_not_found"`
}

func trackToDTO(t *catalog.Track) trackDTO {
	return trackDTO{
		ID:                t.ID,
		Artists:           t.Artists,
		Title:             t.Title,
		NormalizedArtists: t.NormalizedArtists,
		NormalizedTitle:   t.NormalizedTitle,
		DurationMs:        t.DurationMs,
		ISRC:              t.ISRC,
		Album:             t.Album,
		CoverURL:          t.CoverURL,
		Genre:             t.Genre,
		BPM:               t.BPM,
		ReleaseDate:       t.ReleaseDate,
		Explicit:          t.Explicit,
		SearchedNotFound:  t.SearchedNotFound,
	}
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.store.ListTracks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	dtos := make([]trackDTO, 0, len(tracks))
	for _, t := range tracks {
		dtos = append(dtos, trackToDTO(t))
	}

	writeJSON(w, http.StatusOK, dtos)
}

type createTrackRequest struct {
	Artists     string   `json:"artists"`
	Title       string   `json:"title"`
	Album       *string  `json:"album,omitempty"`
	ISRC        *string  `json:"isrc,omitempty"`
	DurationMs  *int64   `json:"duration_ms,omitempty"`
	ReleaseDate *string  `json:"release_date,omitempty"`
	BPM         *float64 `json:"bpm,omitempty"`
}

func (s *Server) handleCreateTrack(w http.ResponseWriter, r *http.Request) {
	var req createTrackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.Artists == "" || req.Title == "" {
		writeError(w, r, badRequest("artists and title are required"))
		return
	}

	normalized := normalize.Normalize(req.Artists, req.Title)

	track, err := s.store.CreateTrack(r.Context(), &catalog.Track{
		Artists:           req.Artists,
		Title:             req.Title,
		NormalizedArtists: normalized.CleanArtists,
		NormalizedTitle:   normalized.CleanTitle,
		Album:             req.Album,
		ISRC:              req.ISRC,
		DurationMs:        req.DurationMs,
		ReleaseDate:       req.ReleaseDate,
		BPM:               req.BPM,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, trackToDTO(track))
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	track, err := s.store.GetTrack(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, trackToDTO(track))
}

func (s *Server) handleUpdateTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req createTrackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	track, err := s.store.GetTrack(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.Artists != "" {
		track.Artists = req.Artists
	}

	if req.Title != "" {
		track.Title = req.Title
	}

	normalized := normalize.Normalize(track.Artists, track.Title)
	track.NormalizedArtists = normalized.CleanArtists
	track.NormalizedTitle = normalized.CleanTitle
	track.Album = req.Album
	track.ISRC = req.ISRC
	track.DurationMs = req.DurationMs
	track.ReleaseDate = req.ReleaseDate
	track.BPM = req.BPM

	if err := s.store.UpdateTrack(r.Context(), track); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, trackToDTO(track))
}

func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.store.DeleteTrack(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleNormalizePreview(w http.ResponseWriter, r *http.Request) {
	artists := r.URL.Query().Get("artists")
	title := r.URL.Query().Get("title")

	result := normalize.Normalize(artists, title)

	writeJSON(w, http.StatusOK, map[string]any{
		"clean_artists":  result.CleanArtists,
		"clean_title":    result.CleanTitle,
		"primary_artist": result.PrimaryArtist,
		"is_remix_edit":  result.Flags.IsRemixOrEdit,
		"is_live":        result.Flags.IsLive,
		"is_remaster":    result.Flags.IsRemaster,
	})
}

func (s *Server) handleTrackIdentities(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	identities, err := s.store.ListIdentitiesForTrack(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, identities)
}

// enrichedTrackDTO composes Track + playlist-link list + computed flags,
// replacing the dynamic-dictionary DTO the redesign flag calls out.
type enrichedTrackDTO struct {
	trackDTO

	PlaylistIDs    []int64 `json:"playlist_ids"`
	HasLibraryFile bool    `json:"has_library_file"`
	HasChosen      bool    `json:"has_chosen_candidate"`
}

func (s *Server) handleTracksWithPlaylistInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tracks, err := s.store.ListTracks(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]enrichedTrackDTO, 0, len(tracks))

	for _, t := range tracks {
		links, err := s.store.ListTrackPlaylists(ctx, t.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		playlistIDs := make([]int64, 0, len(links))
		for _, l := range links {
			playlistIDs = append(playlistIDs, l.PlaylistID)
		}

		libFile, libErr := s.store.GetLibraryFileForTrack(ctx, t.ID)
		_, candErr := s.store.GetChosenCandidate(ctx, t.ID)

		out = append(out, enrichedTrackDTO{
			trackDTO:       trackToDTO(t),
			PlaylistIDs:    playlistIDs,
			HasLibraryFile: libErr == nil && libFile != nil,
			HasChosen:      candErr == nil,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTracksReadyForDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tracks, err := s.store.ListTracks(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]trackDTO, 0)

	for _, t := range tracks {
		if file, err := s.store.GetLibraryFileForTrack(ctx, t.ID); err == nil && file != nil {
			continue
		}

		if _, err := s.store.GetChosenCandidate(ctx, t.ID); err != nil {
			continue
		}

		out = append(out, trackToDTO(t))
	}

	writeJSON(w, http.StatusOK, out)
}

type searchResultDTO struct {
	ExternalID string          `json:"external_id"`
	URL        string          `json:"url"`
	Title      string          `json:"title"`
	Channel    string          `json:"channel"`
	Score      float64         `json:"score"`
	Components ranking.Components `json:"components"`
	CandidateID *int64         `json:"candidate_id,omitempty"`
}

func (s *Server) handleTrackSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	track, err := s.store.GetTrack(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit := queryInt(r, "limit", 10)
	persist := queryBool(r, "persist", false)

	s.metrics.searchesTotal.Inc()

	raw, err := s.extractor.Search(ctx, extractorQuery(track), extractorOptions(s.cfg))
	if err != nil {
		writeError(w, r, err)
		return
	}

	rankedCandidates := make([]ranking.RawCandidate, 0, len(raw))
	for _, c := range raw {
		rankedCandidates = append(rankedCandidates, ranking.RawCandidate{
			ID: c.ExternalID, Title: c.Title, Channel: c.Channel, DurationSec: c.DurationSec,
		})
	}

	ranked := s.ranker.Rank(ranking.Query{
		Artists: track.Artists, Title: track.Title, DurationMs: track.DurationMs,
	}, rankedCandidates)

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	byExternalID := make(map[string]string, len(raw))
	for _, c := range raw {
		byExternalID[c.ExternalID] = c.URL
	}

	out := make([]searchResultDTO, 0, len(ranked))

	for _, rk := range ranked {
		dto := searchResultDTO{
			ExternalID: rk.ID,
			URL:        byExternalID[rk.ID],
			Title:      rk.Title,
			Channel:    rk.Channel,
			Score:      rk.Score,
			Components: rk.Components,
		}

		if persist {
			channel := rk.Channel

			created, err := s.store.CreateCandidate(ctx, &catalog.SearchCandidate{
				TrackID:     track.ID,
				Provider:    "youtube",
				ExternalID:  rk.ID,
				URL:         dto.URL,
				Title:       rk.Title,
				Channel:     &channel,
				DurationSec: rk.DurationSec,
				Score:       rk.Score,
			})
			if err == nil {
				dto.CandidateID = &created.ID
			}
		}

		out = append(out, dto)
	}

	writeJSON(w, http.StatusOK, out)
}

// handleRefreshCover implements spec §4.7's "refresh cover via Spotify
// identity or chosen candidate": a Spotify identity's album art always
// wins (it's already on the Track row from sync ingestion); absent that,
// it falls back to the chosen candidate's thumbnail, captured the next
// time that candidate is downloaded (the tagger's own cover-resolution
// priority mirrors this, see internal/tagger.resolveCover).
func (s *Server) handleRefreshCover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	track, err := s.store.GetTrack(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if track.CoverURL != nil {
		writeJSON(w, http.StatusOK, trackToDTO(track))
		return
	}

	identities, err := s.store.ListIdentitiesForTrack(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	for _, identity := range identities {
		if identity.Provider == catalog.ProviderSpotify && identity.ProviderURL != nil {
			track.CoverURL = identity.ProviderURL
			break
		}
	}

	if track.CoverURL != nil {
		if err := s.store.UpdateTrack(ctx, track); err != nil {
			writeError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, trackToDTO(track))
}
