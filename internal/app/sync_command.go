package app

import (
	"context"
	"fmt"

	"github.com/oshokin/trackgrab/internal/config"
	"github.com/oshokin/trackgrab/internal/logger"
	"github.com/oshokin/trackgrab/internal/sync"
)

// RunSync connects the named Spotify account (creating it on first use),
// discovers every playlist it can see, selects all of them, and reconciles
// the selected playlists into the catalog. It is the one-shot CLI
// equivalent of the orchestration API's discover/select/sync endpoints.
func RunSync(ctx context.Context, cfg *config.Config, externalAccountID string, force bool) (*sync.SyncSummary, error) {
	store, err := openStoreOnly(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close() //nolint:errcheck // best effort on the command exit path.

	ingestor, err := sync.New(cfg, store)
	if err != nil {
		return nil, fmt.Errorf("build sync ingestor: %w", err)
	}

	account, err := ingestor.EnsureAccount(ctx, externalAccountID)
	if err != nil {
		return nil, fmt.Errorf("ensure source account: %w", err)
	}

	discovered, err := ingestor.Discover(ctx, account.ID, true)
	if err != nil {
		return nil, fmt.Errorf("discover playlists: %w", err)
	}

	logger.Infof(ctx, "discovered %d playlist(s) for account %s", len(discovered), externalAccountID)

	playlists, err := store.ListPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}

	var allIDs []int64

	for _, p := range playlists {
		if p.SourceAccountID != nil && *p.SourceAccountID == account.ID {
			allIDs = append(allIDs, p.ID)
		}
	}

	if err := ingestor.Select(ctx, account.ID, allIDs); err != nil {
		return nil, fmt.Errorf("select playlists: %w", err)
	}

	summary, err := ingestor.Sync(ctx, account.ID, force)
	if err != nil {
		return nil, fmt.Errorf("sync playlists: %w", err)
	}

	return summary, nil
}
