package api

import "net/http"

func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	authorizeURL, err := s.ingestor.Authorize(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authorizeURL)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	if state == "" || code == "" {
		writeError(w, r, badRequest("state and code query parameters are required"))
		return
	}

	account, err := s.ingestor.Callback(r.Context(), state, code)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

type oauthRefreshRequest struct {
	AccountID int64 `json:"account_id"`
}

func (s *Server) handleOAuthRefresh(w http.ResponseWriter, r *http.Request) {
	var req oauthRefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	expiry, err := s.ingestor.Refresh(r.Context(), req.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"expiry": expiry})
}

type ensureAccountRequest struct {
	ExternalID string `json:"external_id"`
}

func (s *Server) handleOAuthEnsureAccount(w http.ResponseWriter, r *http.Request) {
	var req ensureAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.ExternalID == "" {
		writeError(w, r, badRequest("external_id is required"))
		return
	}

	account, err := s.ingestor.EnsureAccount(r.Context(), req.ExternalID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}
