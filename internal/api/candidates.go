package api

import "net/http"

func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	trackID, err := queryInt64Ptr(r, "track_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if trackID == nil {
		writeError(w, r, badRequest("track_id query parameter is required"))
		return
	}

	candidates, err := s.store.ListCandidatesForTrack(r.Context(), *trackID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	for _, c := range candidates {
		if c.ID == id {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}

	writeError(w, r, badRequest("candidate not found for track"))
}

func (s *Server) handleChooseCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	trackID, err := queryInt64Ptr(r, "track_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if trackID == nil {
		writeError(w, r, badRequest("track_id query parameter is required"))
		return
	}

	if err := s.store.ChooseCandidate(r.Context(), *trackID, id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chosen_candidate_id": id})
}
