package api

import (
	"net/http"

	"github.com/oshokin/trackgrab/internal/catalog"
	"github.com/oshokin/trackgrab/internal/logger"
)

type enqueueDownloadRequest struct {
	TrackID     int64  `json:"track_id"`
	CandidateID *int64 `json:"candidate_id,omitempty"`
	Force       bool   `json:"force,omitempty"`
}

func (s *Server) handleEnqueueDownload(w http.ResponseWriter, r *http.Request) {
	var req enqueueDownloadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.TrackID == 0 {
		writeError(w, r, badRequest("track_id is required"))
		return
	}

	download, err := s.scheduler.Enqueue(r.Context(), req.TrackID, req.CandidateID, req.Force)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, download)
}

func (s *Server) handleCancelDownload(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.scheduler.Cancel(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cancelled": id})
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	s.scheduler.StopAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

type restartWorkerRequest struct {
	Count int `json:"count,omitempty"`
}

func (s *Server) handleRestartWorker(w http.ResponseWriter, r *http.Request) {
	var req restartWorkerRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	count := req.Count
	if count <= 0 {
		count = int(s.cfg.MaxConcurrentDownloads)
	}

	s.scheduler.RestartWorker(count)
	writeJSON(w, http.StatusOK, map[string]any{"workers": count})
}

func (s *Server) handleDownloadStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

func (s *Server) handleDownloadLogs(w http.ResponseWriter, r *http.Request) {
	maxLines := queryInt(r, "max_lines", 200)

	entries := s.scheduler.Logs(maxLines)
	if entries == nil {
		entries = []logger.RingEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	trackID, err := queryInt64Ptr(r, "track_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if trackID != nil {
		downloads, err := s.store.ListDownloadsForTrack(r.Context(), *trackID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, downloads)

		return
	}

	status := r.URL.Query().Get("status")
	if status == "" {
		writeError(w, r, badRequest("track_id or status query parameter is required"))
		return
	}

	downloads, err := s.store.ListDownloadsByStatus(r.Context(), catalog.DownloadStatus(status))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, downloads)
}
