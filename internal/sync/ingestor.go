package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/zmb3/spotify/v2"

	"github.com/oshokin/trackgrab/internal/catalog"
	"github.com/oshokin/trackgrab/internal/config"
	"github.com/oshokin/trackgrab/internal/logger"
	"github.com/oshokin/trackgrab/internal/normalize"
)

// Ingestor pulls playlists and tracks from a connected Spotify account into
// the catalog, following spec.md §4.8's discover/select/sync contract.
type Ingestor struct {
	cfg    *config.Config
	store  catalog.Store
	cipher *tokenCipher
}

// New builds an Ingestor. SecretKey must be non-empty; it is the process
// key OAuth refresh tokens are encrypted at rest with.
func New(cfg *config.Config, store catalog.Store) (*Ingestor, error) {
	cipher, err := newTokenCipher(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("build token cipher: %w", err)
	}

	return &Ingestor{cfg: cfg, store: store, cipher: cipher}, nil
}

// DiscoveredPlaylist is one entry of Discover's result.
type DiscoveredPlaylist struct {
	ProviderPlaylistID string
	Name               string
	Owner              string
	Snapshot           string
	TrackCount         int
	AlreadyKnown       bool
	Selected           bool
}

// Discover lists every playlist visible to the connected account, optionally
// persisting newly-seen ones as unselected Catalog playlists.
func (i *Ingestor) Discover(ctx context.Context, accountID int64, persist bool) ([]DiscoveredPlaylist, error) {
	client, err := i.clientForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("build spotify client: %w", err)
	}

	var (
		discovered []DiscoveredPlaylist
		offset     int
	)

	for {
		page, err := client.CurrentUsersPlaylists(ctx, spotify.Limit(50), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("list playlists: %w", err)
		}

		for _, p := range page.Playlists {
			entry := DiscoveredPlaylist{
				ProviderPlaylistID: p.ID.String(),
				Name:               p.Name,
				Owner:              p.Owner.DisplayName,
				Snapshot:           p.SnapshotID,
				TrackCount:         int(p.Tracks.Total),
			}

			existing, err := i.store.FindPlaylistByProvider(ctx, "spotify", entry.ProviderPlaylistID)
			if err == nil {
				entry.AlreadyKnown = true
				entry.Selected = existing.Selected
			} else if persist {
				created, err := i.store.CreatePlaylist(ctx, &catalog.Playlist{
					Provider:           "spotify",
					ProviderPlaylistID: &entry.ProviderPlaylistID,
					Name:               entry.Name,
					Owner:              &entry.Owner,
					Snapshot:           &entry.Snapshot,
					SourceAccountID:    &accountID,
				})
				if err != nil {
					return nil, fmt.Errorf("persist discovered playlist: %w", err)
				}

				entry.AlreadyKnown = true
				entry.Selected = created.Selected
			}

			discovered = append(discovered, entry)
		}

		if len(page.Playlists) < 50 {
			break
		}

		offset += 50
	}

	return discovered, nil
}

// Select marks exactly the given playlist ids as selected for accountID,
// clearing every other playlist belonging to the account (spec §4.8's "set
// operation").
func (i *Ingestor) Select(ctx context.Context, accountID int64, playlistIDs []int64) error {
	playlists, err := i.store.ListPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("list playlists: %w", err)
	}

	wanted := make(map[int64]bool, len(playlistIDs))
	for _, id := range playlistIDs {
		wanted[id] = true
	}

	for _, p := range playlists {
		if p.SourceAccountID == nil || *p.SourceAccountID != accountID {
			continue
		}

		if err := i.store.SetPlaylistSelected(ctx, p.ID, wanted[p.ID]); err != nil {
			return fmt.Errorf("set playlist %d selected: %w", p.ID, err)
		}
	}

	return nil
}

// PlaylistSyncSummary is one playlist's reconciliation outcome.
type PlaylistSyncSummary struct {
	PlaylistID    int64
	Skipped       bool
	TracksCreated int
	TracksUpdated int
	LinksCreated  int
	LinksRemoved  int
}

// SyncSummary totals every PlaylistSyncSummary in one sync run.
type SyncSummary struct {
	Playlists     []PlaylistSyncSummary
	TracksCreated int
	TracksUpdated int
	LinksCreated  int
	LinksRemoved  int
	Skipped       int
}

// Sync reconciles every selected playlist for accountID against the
// provider's current state, skipping playlists whose snapshot token hasn't
// changed since the last sync unless force is set (spec §4.8).
func (i *Ingestor) Sync(ctx context.Context, accountID int64, force bool) (*SyncSummary, error) {
	client, err := i.clientForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("build spotify client: %w", err)
	}

	playlists, err := i.store.ListPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}

	summary := &SyncSummary{}

	for _, p := range playlists {
		if p.SourceAccountID == nil || *p.SourceAccountID != accountID || !p.Selected {
			continue
		}

		if p.ProviderPlaylistID == nil {
			continue
		}

		playlistSummary, err := i.syncOnePlaylist(ctx, client, p, force)
		if err != nil {
			logger.Errorf(ctx, "sync: playlist %d failed: %v", p.ID, err)
			continue
		}

		summary.Playlists = append(summary.Playlists, *playlistSummary)

		if playlistSummary.Skipped {
			summary.Skipped++
			continue
		}

		summary.TracksCreated += playlistSummary.TracksCreated
		summary.TracksUpdated += playlistSummary.TracksUpdated
		summary.LinksCreated += playlistSummary.LinksCreated
		summary.LinksRemoved += playlistSummary.LinksRemoved
	}

	return summary, nil
}

func (i *Ingestor) syncOnePlaylist(
	ctx context.Context,
	client *spotify.Client,
	playlist *catalog.Playlist,
	force bool,
) (*PlaylistSyncSummary, error) {
	providerID := spotify.ID(*playlist.ProviderPlaylistID)

	full, err := client.GetPlaylist(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist: %w", err)
	}

	if !force && playlist.Snapshot != nil && *playlist.Snapshot == full.SnapshotID {
		return &PlaylistSyncSummary{PlaylistID: playlist.ID, Skipped: true}, nil
	}

	summary := &PlaylistSyncSummary{PlaylistID: playlist.ID}

	existingLinks, err := i.store.ListPlaylistTracks(ctx, playlist.ID)
	if err != nil {
		return nil, fmt.Errorf("list existing links: %w", err)
	}

	seenTrackIDs := make(map[int64]bool, len(existingLinks))

	linkedTrackIDs := make(map[int64]bool, len(existingLinks))
	for _, link := range existingLinks {
		linkedTrackIDs[link.TrackID] = true
	}

	var (
		offset   int
		position int64
	)

	for {
		page, err := client.GetPlaylistItems(ctx, providerID, spotify.Limit(100), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("fetch playlist items: %w", err)
		}

		for _, item := range page.Items {
			if item.Track.Track == nil {
				continue
			}

			track, created, err := i.upsertProviderTrack(ctx, item.Track.Track)
			if err != nil {
				return nil, fmt.Errorf("upsert track: %w", err)
			}

			if created {
				summary.TracksCreated++
			} else {
				summary.TracksUpdated++
			}

			addedAt := parseSpotifyAddedAt(item.AddedAt)
			pos := position

			if err := i.store.UpsertPlaylistTrack(ctx, &catalog.PlaylistTrack{
				PlaylistID: playlist.ID,
				TrackID:    track.ID,
				Position:   &pos,
				AddedAt:    &addedAt,
			}); err != nil {
				return nil, fmt.Errorf("upsert playlist link: %w", err)
			}

			if !seenTrackIDs[track.ID] && !linkedTrackIDs[track.ID] {
				summary.LinksCreated++
			}

			seenTrackIDs[track.ID] = true
			position++
		}

		if len(page.Items) < 100 {
			break
		}

		offset += 100
	}

	for _, link := range existingLinks {
		if !seenTrackIDs[link.TrackID] {
			summary.LinksRemoved++
		}
	}

	snapshot := full.SnapshotID
	playlist.Snapshot = &snapshot
	playlist.Name = full.Name

	if err := i.store.UpdatePlaylist(ctx, playlist); err != nil {
		return nil, fmt.Errorf("update playlist snapshot: %w", err)
	}

	return summary, nil
}

// upsertProviderTrack reuses the track already linked to this Spotify track
// id when the track carries an ISRC; otherwise, or when no such identity
// exists, it matches by normalized (artists, title). Tracks are not looked
// up by ISRC value. It creates a spotify TrackIdentity if one doesn't exist
// yet (spec §4.8).
func (i *Ingestor) upsertProviderTrack(ctx context.Context, full *spotify.FullTrack) (*catalog.Track, bool, error) {
	artists := joinArtistNames(full.Artists)
	isrc := full.ExternalIDs["isrc"]

	if isrc != "" {
		if identity, err := i.store.FindIdentity(ctx, catalog.ProviderSpotify, string(full.ID)); err == nil {
			track, err := i.store.GetTrack(ctx, identity.TrackID)
			return track, false, err
		}
	}

	normalized := normalize.Normalize(artists, full.Name)

	track, err := i.store.FindTrackByNormalized(ctx, normalized.CleanArtists, normalized.CleanTitle)
	created := false

	if err != nil {
		durationMs := int64(full.Duration)
		var isrcPtr *string

		if isrc != "" {
			isrcPtr = &isrc
		}

		var cover *string
		if len(full.Album.Images) > 0 {
			url := full.Album.Images[0].URL
			cover = &url
		}

		albumName := full.Album.Name

		track, err = i.store.CreateTrack(ctx, &catalog.Track{
			Artists:           artists,
			Title:             full.Name,
			NormalizedArtists: normalized.CleanArtists,
			NormalizedTitle:   normalized.CleanTitle,
			DurationMs:        &durationMs,
			ISRC:              isrcPtr,
			Album:             &albumName,
			CoverURL:          cover,
			Explicit:          full.Explicit,
		})
		if err != nil {
			return nil, false, err
		}

		created = true
	}

	if _, err := i.store.FindIdentity(ctx, catalog.ProviderSpotify, string(full.ID)); err != nil {
		providerURL := string(full.ID)

		if _, err := i.store.CreateIdentity(ctx, &catalog.TrackIdentity{
			TrackID:         track.ID,
			Provider:        catalog.ProviderSpotify,
			ProviderTrackID: string(full.ID),
			ProviderURL:     &providerURL,
		}); err != nil {
			return nil, false, err
		}
	}

	return track, created, nil
}

func joinArtistNames(artists []spotify.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}

	result := ""

	for idx, name := range names {
		if idx > 0 {
			result += ", "
		}

		result += name
	}

	return result
}

func parseSpotifyAddedAt(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Now().UTC()
	}

	return t
}
