package catalog

import "context"

// Store is the Catalog's persistence contract. Every entity operation used
// by the ranking, scheduler, API, and sync layers goes through it, so those
// packages depend only on this interface and never on database/sql types.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mock_store.go -package=catalog
type Store interface {
	// Tracks.
	CreateTrack(ctx context.Context, t *Track) (*Track, error)
	GetTrack(ctx context.Context, id int64) (*Track, error)
	FindTrackByNormalized(ctx context.Context, normalizedArtists, normalizedTitle string) (*Track, error)
	UpdateTrack(ctx context.Context, t *Track) error
	MarkTrackSearchedNotFound(ctx context.Context, trackID int64, notFound bool) error
	DeleteTrack(ctx context.Context, id int64) error
	ListTracks(ctx context.Context) ([]*Track, error)

	// Identities.
	CreateIdentity(ctx context.Context, identity *TrackIdentity) (*TrackIdentity, error)
	FindIdentity(ctx context.Context, provider IdentityProvider, providerTrackID string) (*TrackIdentity, error)
	ListIdentitiesForTrack(ctx context.Context, trackID int64) ([]*TrackIdentity, error)

	// Playlists.
	CreatePlaylist(ctx context.Context, p *Playlist) (*Playlist, error)
	GetPlaylist(ctx context.Context, id int64) (*Playlist, error)
	FindPlaylistByProvider(ctx context.Context, provider, providerPlaylistID string) (*Playlist, error)
	UpdatePlaylist(ctx context.Context, p *Playlist) error
	SetPlaylistSelected(ctx context.Context, id int64, selected bool) error
	ListPlaylists(ctx context.Context) ([]*Playlist, error)

	// PlaylistTracks.
	UpsertPlaylistTrack(ctx context.Context, pt *PlaylistTrack) error
	ListPlaylistTracks(ctx context.Context, playlistID int64) ([]*PlaylistTrack, error)
	ListTrackPlaylists(ctx context.Context, trackID int64) ([]*PlaylistTrack, error)

	// SearchCandidates.
	CreateCandidate(ctx context.Context, c *SearchCandidate) (*SearchCandidate, error)
	ListCandidatesForTrack(ctx context.Context, trackID int64) ([]*SearchCandidate, error)
	// ChooseCandidate atomically sets chosen=true on candidateID and
	// chosen=false on every sibling candidate sharing its track_id.
	ChooseCandidate(ctx context.Context, trackID, candidateID int64) error
	GetChosenCandidate(ctx context.Context, trackID int64) (*SearchCandidate, error)

	// Downloads.
	CreateDownload(ctx context.Context, d *Download) (*Download, error)
	GetDownload(ctx context.Context, id int64) (*Download, error)
	UpdateDownload(ctx context.Context, d *Download) error
	ListDownloadsForTrack(ctx context.Context, trackID int64) ([]*Download, error)
	ListDownloadsByStatus(ctx context.Context, status DownloadStatus) ([]*Download, error)
	// DeleteDownloadsOlderThanKeep prunes finished downloads beyond the most
	// recent keep rows across all tracks (HISTORY_KEEP sweep).
	DeleteDownloadsOlderThanKeep(ctx context.Context, keep int) (int64, error)

	// LibraryFiles.
	UpsertLibraryFile(ctx context.Context, f *LibraryFile) (*LibraryFile, error)
	GetLibraryFileForTrack(ctx context.Context, trackID int64) (*LibraryFile, error)
	GetLibraryFile(ctx context.Context, id int64) (*LibraryFile, error)
	DeleteLibraryFile(ctx context.Context, id int64) error
	ListLibraryFiles(ctx context.Context) ([]*LibraryFile, error)

	// SourceAccounts.
	UpsertSourceAccount(ctx context.Context, a *SourceAccount) (*SourceAccount, error)
	GetSourceAccount(ctx context.Context, id int64) (*SourceAccount, error)
	FindSourceAccount(ctx context.Context, provider, externalID string) (*SourceAccount, error)

	// OAuthTokens.
	PutOAuthToken(ctx context.Context, t *OAuthToken) error
	GetOAuthToken(ctx context.Context, sourceAccountID int64) (*OAuthToken, error)

	// OAuthStates.
	CreateOAuthState(ctx context.Context, s *OAuthState) error
	ConsumeOAuthState(ctx context.Context, state string) (*OAuthState, error)

	Close() error
}
