package app

import (
	"context"
	"fmt"

	"github.com/oshokin/trackgrab/internal/api"
	"github.com/oshokin/trackgrab/internal/catalog"
	"github.com/oshokin/trackgrab/internal/config"
	"github.com/oshokin/trackgrab/internal/extractor"
	"github.com/oshokin/trackgrab/internal/fstime"
	"github.com/oshokin/trackgrab/internal/logger"
	"github.com/oshokin/trackgrab/internal/ranking"
	"github.com/oshokin/trackgrab/internal/scheduler"
	"github.com/oshokin/trackgrab/internal/sync"
	"github.com/oshokin/trackgrab/internal/tagger"
)

// Services is every long-lived dependency the CLI's subcommands share,
// wired once at startup and torn down together on exit.
type Services struct {
	Store     catalog.Store
	Ranker    *ranking.CachedRanker
	Extractor extractor.Client
	Tagger    tagger.TagProcessor
	Scheduler *scheduler.Scheduler
	Ingestor  *sync.Ingestor
	Server    *api.Server
}

// Bootstrap opens the catalog and wires every package the API, scheduler,
// and sync ingestor depend on, following the same "build everything once in
// main, pass it down" shape the teacher's own cmd/root.go uses for its
// client/service graph.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Services, error) {
	store, err := catalog.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	ranker, err := ranking.NewCachedRanker(ranking.DefaultConfig())
	if err != nil {
		store.Close() //nolint:errcheck // best effort on the failure path.
		return nil, fmt.Errorf("build ranker: %w", err)
	}

	extractorClient, err := buildExtractor(cfg)
	if err != nil {
		store.Close() //nolint:errcheck // best effort on the failure path.
		return nil, fmt.Errorf("build extractor client: %w", err)
	}

	tagProcessor := tagger.NewTagProcessor(newCoverFetcher())
	timestampSetter := fstime.NewSetter()

	sched := scheduler.New(cfg, store, extractorClient, ranker, tagProcessor, timestampSetter)

	ingestor, err := sync.New(cfg, store)
	if err != nil {
		sched.StopAll(ctx)
		store.Close() //nolint:errcheck // best effort on the failure path.

		return nil, fmt.Errorf("build sync ingestor: %w", err)
	}

	server := api.NewServer(cfg, store, ranker, extractorClient, tagProcessor, sched, ingestor)

	return &Services{
		Store:     store,
		Ranker:    ranker,
		Extractor: extractorClient,
		Tagger:    tagProcessor,
		Scheduler: sched,
		Ingestor:  ingestor,
		Server:    server,
	}, nil
}

// openStoreOnly opens the catalog without wiring the rest of the service
// graph, for one-shot CLI subcommands that don't need the HTTP server or
// scheduler worker pool running.
func openStoreOnly(ctx context.Context, cfg *config.Config) (catalog.Store, error) {
	store, err := catalog.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	return store, nil
}

func buildExtractor(cfg *config.Config) (extractor.Client, error) {
	if cfg.DownloadFake || cfg.YoutubeSearchFake {
		return extractor.NewFakeClient(nil), nil
	}

	return extractor.NewRealClient(cfg.YtDlpBin, cfg.FfmpegBin, cfg.YoutubeSearchGraphQLURL)
}

// Close releases every resource Bootstrap acquired.
func (s *Services) Close(ctx context.Context) {
	s.Scheduler.StopAll(ctx)

	if err := s.Store.Close(); err != nil {
		logger.Errorf(ctx, "failed to close catalog: %v", err)
	}
}

// RunServe blocks serving the orchestration API until ctx is cancelled.
func RunServe(ctx context.Context, cfg *config.Config) error {
	services, err := Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Close(ctx)

	return services.Server.Start(ctx)
}
