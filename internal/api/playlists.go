package api

import "net/http"

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.store.ListPlaylists(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	if queryBool(r, "selected_only", false) {
		filtered := playlists[:0]

		for _, p := range playlists {
			if p.Selected {
				filtered = append(filtered, p)
			}
		}

		playlists = filtered
	}

	writeJSON(w, http.StatusOK, playlists)
}

func (s *Server) handlePlaylistEntries(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := s.store.ListPlaylistTracks(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAutoDownload(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	status, err := s.scheduler.AutoDownloadPlaylist(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, status)
}

// handleRetryNotFound re-queues every track in the playlist that was
// previously marked as not found, clearing the flag so auto-download will
// search it again instead of short-circuiting.
func (s *Server) handleRetryNotFound(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	links, err := s.store.ListPlaylistTracks(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var retried int

	for _, link := range links {
		track, getErr := s.store.GetTrack(r.Context(), link.TrackID)
		if getErr != nil || !track.SearchedNotFound {
			continue
		}

		if markErr := s.store.MarkTrackSearchedNotFound(r.Context(), track.ID, false); markErr == nil {
			retried++
		}
	}

	status, err := s.scheduler.AutoDownloadPlaylist(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"retried_tracks": retried,
		"auto_download":  status,
	})
}

type playlistStats struct {
	PlaylistID    int64 `json:"playlist_id"`
	Name          string `json:"name"`
	TotalTracks   int    `json:"total_tracks"`
	Downloaded    int    `json:"downloaded"`
	NotFound      int    `json:"not_found"`
	Pending       int    `json:"pending"`
}

func (s *Server) handlePlaylistStats(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.store.ListPlaylists(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	selectedOnly := queryBool(r, "selected_only", false)
	stats := make([]playlistStats, 0, len(playlists))

	for _, p := range playlists {
		if selectedOnly && !p.Selected {
			continue
		}

		entries, entriesErr := s.store.ListPlaylistTracks(r.Context(), p.ID)
		if entriesErr != nil {
			writeError(w, r, entriesErr)
			return
		}

		stat := playlistStats{PlaylistID: p.ID, Name: p.Name, TotalTracks: len(entries)}

		for _, entry := range entries {
			track, getErr := s.store.GetTrack(r.Context(), entry.TrackID)
			if getErr != nil {
				continue
			}

			if file, fileErr := s.store.GetLibraryFileForTrack(r.Context(), track.ID); fileErr == nil && file != nil {
				stat.Downloaded++
			} else if track.SearchedNotFound {
				stat.NotFound++
			} else {
				stat.Pending++
			}
		}

		stats = append(stats, stat)
	}

	writeJSON(w, http.StatusOK, stats)
}

type membershipRequest struct {
	TrackIDs []int64 `json:"track_ids"`
}

func (s *Server) handlePlaylistMemberships(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	memberships := make(map[int64][]int64, len(req.TrackIDs))

	for _, trackID := range req.TrackIDs {
		links, err := s.store.ListTrackPlaylists(r.Context(), trackID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		ids := make([]int64, 0, len(links))
		for _, link := range links {
			ids = append(ids, link.PlaylistID)
		}

		memberships[trackID] = ids
	}

	writeJSON(w, http.StatusOK, memberships)
}

func (s *Server) handleSpotifyDiscover(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64Ptr(r, "account_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if accountID == nil {
		writeError(w, r, badRequest("account_id query parameter is required"))
		return
	}

	persist := queryBool(r, "persist", true)

	discovered, err := s.ingestor.Discover(r.Context(), *accountID, persist)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, discovered)
}

type spotifySelectRequest struct {
	AccountID   int64   `json:"account_id"`
	PlaylistIDs []int64 `json:"playlist_ids"`
}

func (s *Server) handleSpotifySelect(w http.ResponseWriter, r *http.Request) {
	var req spotifySelectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.ingestor.Select(r.Context(), req.AccountID, req.PlaylistIDs); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type spotifySyncRequest struct {
	AccountID int64 `json:"account_id"`
	Force     bool  `json:"force,omitempty"`
}

func (s *Server) handleSpotifySync(w http.ResponseWriter, r *http.Request) {
	var req spotifySyncRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := s.ingestor.Sync(r.Context(), req.AccountID, req.Force)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
