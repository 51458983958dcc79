package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/trackgrab/internal/catalog"
	"github.com/oshokin/trackgrab/internal/config"
	"github.com/oshokin/trackgrab/internal/extractor"
	"github.com/oshokin/trackgrab/internal/logger"
	"github.com/oshokin/trackgrab/internal/ranking"
	"github.com/oshokin/trackgrab/internal/scheduler"
	"github.com/oshokin/trackgrab/internal/sync"
	"github.com/oshokin/trackgrab/internal/tagger"
)

// version is set by the build, mirroring the teacher's version package
// pattern; the orchestration API's /info endpoint reports it verbatim.
var version = "dev"

// SetVersion overrides the version /info reports; called once at startup.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Server is the process's full HTTP surface: catalog CRUD, the core-specific
// verbs (search/choose/enqueue/auto_download/...), library file serving, and
// the Sync Ingestor's OAuth + discover/select/sync endpoints.
type Server struct {
	cfg       *config.Config
	store     catalog.Store
	ranker    *ranking.CachedRanker
	extractor extractor.Client
	tagger    tagger.TagProcessor
	scheduler *scheduler.Scheduler
	ingestor  *sync.Ingestor

	metrics *metrics
	mux     *http.ServeMux
	started time.Time
}

// NewServer wires every dependency and registers routes; it does not start
// listening (see Start).
func NewServer(
	cfg *config.Config,
	store catalog.Store,
	ranker *ranking.CachedRanker,
	extractorClient extractor.Client,
	tagProcessor tagger.TagProcessor,
	sched *scheduler.Scheduler,
	ingestor *sync.Ingestor,
) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		ranker:    ranker,
		extractor: extractorClient,
		tagger:    tagProcessor,
		scheduler: sched,
		ingestor:  ingestor,
		started:   time.Now().UTC(),
	}

	s.metrics = newMetrics(func() float64 { return float64(len(sched.Status())) })
	s.mux = http.NewServeMux()
	s.routes()

	return s
}

// Handler returns the fully wired, middleware-wrapped http.Handler.
func (s *Server) Handler() http.Handler {
	return s.withCORS(s.withRecover(s.withLogging(s.mux)))
}

// Start blocks serving cfg.ListenAddress until ctx is cancelled, then
// gracefully shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Infof(ctx, "orchestration api listening on %s", s.cfg.ListenAddress)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}

		return err
	}
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /info", s.handleInfo)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	s.mux.HandleFunc("GET /api/v1/tracks", s.handleListTracks)
	s.mux.HandleFunc("POST /api/v1/tracks", s.handleCreateTrack)
	s.mux.HandleFunc("GET /api/v1/tracks/normalize/preview", s.handleNormalizePreview)
	s.mux.HandleFunc("GET /api/v1/tracks/with_playlist_info", s.handleTracksWithPlaylistInfo)
	s.mux.HandleFunc("GET /api/v1/tracks/ready_for_download", s.handleTracksReadyForDownload)
	s.mux.HandleFunc("GET /api/v1/tracks/{id}", s.handleGetTrack)
	s.mux.HandleFunc("PUT /api/v1/tracks/{id}", s.handleUpdateTrack)
	s.mux.HandleFunc("DELETE /api/v1/tracks/{id}", s.handleDeleteTrack)
	s.mux.HandleFunc("GET /api/v1/tracks/{id}/identities", s.handleTrackIdentities)
	s.mux.HandleFunc("GET /api/v1/tracks/{id}/youtube/search", s.handleTrackSearch)
	s.mux.HandleFunc("POST /api/v1/tracks/{id}/cover/refresh", s.handleRefreshCover)

	s.mux.HandleFunc("GET /api/v1/candidates/{id}", s.handleGetCandidate)
	s.mux.HandleFunc("POST /api/v1/candidates/{id}/choose", s.handleChooseCandidate)

	s.mux.HandleFunc("POST /api/v1/downloads/enqueue", s.handleEnqueueDownload)
	s.mux.HandleFunc("POST /api/v1/downloads/cancel/{id}", s.handleCancelDownload)
	s.mux.HandleFunc("POST /api/v1/downloads/stop_all", s.handleStopAll)
	s.mux.HandleFunc("POST /api/v1/downloads/restart_worker", s.handleRestartWorker)
	s.mux.HandleFunc("GET /api/v1/downloads/status", s.handleDownloadStatus)
	s.mux.HandleFunc("GET /api/v1/downloads/logs", s.handleDownloadLogs)
	s.mux.HandleFunc("GET /api/v1/downloads", s.handleListDownloads)

	s.mux.HandleFunc("GET /api/v1/library/files", s.handleListLibraryFiles)
	s.mux.HandleFunc("GET /api/v1/library/files/{id}", s.handleGetLibraryFile)
	s.mux.HandleFunc("DELETE /api/v1/library/files/{id}", s.handleDeleteLibraryFile)
	s.mux.HandleFunc("GET /api/v1/library/files/{id}/download", s.handleDownloadLibraryFile)
	s.mux.HandleFunc("GET /api/v1/library/files/{id}/stream", s.handleStreamLibraryFile)
	s.mux.HandleFunc("POST /api/v1/library/files/{id}/reveal", s.handleRevealLibraryFile)
	s.mux.HandleFunc("POST /api/v1/library/files/scan", s.handleScanLibrary)
	s.mux.HandleFunc("POST /api/v1/library/files/reindex_from_tracks", s.handleReindexFromTracks)
	s.mux.HandleFunc("POST /api/v1/library/files/resync", s.handleResyncLibrary)

	s.mux.HandleFunc("GET /api/v1/playlists", s.handleListPlaylists)
	s.mux.HandleFunc("GET /api/v1/playlists/{id}/entries", s.handlePlaylistEntries)
	s.mux.HandleFunc("POST /api/v1/playlists/{id}/auto_download", s.handleAutoDownload)
	s.mux.HandleFunc("POST /api/v1/playlists/{id}/retry_not_found", s.handleRetryNotFound)
	s.mux.HandleFunc("GET /api/v1/playlists/stats", s.handlePlaylistStats)
	s.mux.HandleFunc("POST /api/v1/playlists/memberships", s.handlePlaylistMemberships)

	s.mux.HandleFunc("GET /api/v1/playlists/spotify/discover", s.handleSpotifyDiscover)
	s.mux.HandleFunc("POST /api/v1/playlists/spotify/select", s.handleSpotifySelect)
	s.mux.HandleFunc("POST /api/v1/playlists/spotify/sync", s.handleSpotifySync)

	s.mux.HandleFunc("GET /api/v1/oauth/spotify/authorize", s.handleOAuthAuthorize)
	s.mux.HandleFunc("GET /api/v1/oauth/spotify/callback", s.handleOAuthCallback)
	s.mux.HandleFunc("POST /api/v1/oauth/spotify/refresh", s.handleOAuthRefresh)
	s.mux.HandleFunc("POST /api/v1/oauth/spotify/ensure_account", s.handleOAuthEnsureAccount)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "trackgrab",
		"version": version,
		"uptime":  time.Since(s.started).String(),
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.metrics.httpRequestsTotal.WithLabelValues(r.URL.Path, statusClass(recorder.status)).Inc()
		logger.Debugf(r.Context(), "%s %s -> %d (%s)", r.Method, r.URL.Path, recorder.status, time.Since(start))
	})
}

func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Errorf(r.Context(), "panic handling %s %s: %v", r.Method, r.URL.Path, rec)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	allowed := strings.Split(s.cfg.CorsOrigins, ",")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && (s.cfg.CorsOrigins == "*" || containsOrigin(allowed, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func containsOrigin(allowed []string, origin string) bool {
	for _, a := range allowed {
		if strings.TrimSpace(a) == origin {
			return true
		}
	}

	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
