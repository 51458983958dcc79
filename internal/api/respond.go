package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oshokin/trackgrab/internal/catalog"
	"github.com/oshokin/trackgrab/internal/extractor"
	"github.com/oshokin/trackgrab/internal/logger"
	"github.com/oshokin/trackgrab/internal/scheduler"
	"github.com/oshokin/trackgrab/internal/sync"
)

// errorResponse is the JSON body written for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if body == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf(context.Background(), "failed to encode response body: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)

	logger.Debugf(r.Context(), "%s %s -> %d: %v", r.Method, r.URL.Path, status, err)
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusForError maps domain sentinel errors to HTTP status codes (spec §6's
// "4xx for user errors, 5xx for infrastructure; 409 specifically for cancel
// running job and duplicate enqueue without force").
func statusForError(err error) int {
	switch {
	case errors.Is(err, catalog.ErrTrackNotFound),
		errors.Is(err, catalog.ErrPlaylistNotFound),
		errors.Is(err, catalog.ErrCandidateNotFound),
		errors.Is(err, catalog.ErrDownloadNotFound),
		errors.Is(err, catalog.ErrAccountNotFound),
		errors.Is(err, catalog.ErrOAuthStateNotFound),
		errors.Is(err, scheduler.ErrJobNotFound),
		errors.Is(err, sync.ErrStateMismatch):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrDuplicateTrack),
		errors.Is(err, scheduler.ErrCancelRefused),
		errors.Is(err, scheduler.ErrDownloadInProgress):
		return http.StatusConflict
	case errors.Is(err, scheduler.ErrNoCandidate),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, extractor.ErrSearchTimedOut):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
