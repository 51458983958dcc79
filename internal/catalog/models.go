package catalog

import "time"

// DownloadStatus is the closed enumeration of Download lifecycle states.
type DownloadStatus string

// Download lifecycle states (spec §4.6).
const (
	DownloadStatusQueued  DownloadStatus = "queued"
	DownloadStatusRunning DownloadStatus = "running"
	DownloadStatusDone    DownloadStatus = "done"
	DownloadStatusFailed  DownloadStatus = "failed"
	DownloadStatusSkipped DownloadStatus = "skipped"
	DownloadStatusAlready DownloadStatus = "already"
)

// IdentityProvider names the external catalogs a TrackIdentity can reference.
type IdentityProvider string

// Known identity providers.
const (
	ProviderManual  IdentityProvider = "manual"
	ProviderSpotify IdentityProvider = "spotify"
	ProviderYoutube IdentityProvider = "youtube"
)

// Track is a song in the personal library, keyed by its normalized
// (artists, title) pair for manual-import de-duplication.
type Track struct {
	ID                int64
	Artists           string
	Title             string
	NormalizedArtists string
	NormalizedTitle   string
	DurationMs        *int64
	ISRC              *string
	Album             *string
	CoverURL          *string
	Genre             *string
	BPM               *float64
	ReleaseDate       *string
	SpotifyAddedAt    *time.Time
	Explicit          bool
	SearchedNotFound  bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TrackIdentity is a stable reference to a Track in an external catalog.
type TrackIdentity struct {
	ID              int64
	TrackID         int64
	Provider        IdentityProvider
	ProviderTrackID string
	ProviderURL     *string
	Fingerprint     *string
}

// Playlist groups tracks, optionally sourced from a streaming provider.
type Playlist struct {
	ID                int64
	Provider          string
	ProviderPlaylistID *string
	Name              string
	Owner             *string
	Snapshot          *string
	SourceAccountID   *int64
	Selected          bool
}

// PlaylistTrack links a Track into a Playlist at a given position.
type PlaylistTrack struct {
	PlaylistID int64
	TrackID    int64
	Position   *int64
	AddedAt    *time.Time
}

// SearchCandidate is a ranked extractor search result for a Track.
type SearchCandidate struct {
	ID              int64
	TrackID         int64
	Provider        string
	ExternalID      string
	URL             string
	Title           string
	Channel         *string
	DurationSec     *int64
	Score           float64
	Chosen          bool
	ScoreBreakdown  *string
}

// Download is one scheduler job's persisted record.
type Download struct {
	ID            int64
	TrackID       int64
	CandidateID   *int64
	Provider      string
	Status        DownloadStatus
	Filepath      *string
	Format        *string
	FilesizeBytes *int64
	Checksum      *string
	ErrorMessage  *string
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// LibraryFile is the ground truth that a track has already been acquired.
type LibraryFile struct {
	ID        int64
	TrackID   int64
	Filepath  string
	FileSize  *int64
	FileMtime *time.Time
	Checksum  *string
	Container string
	CreatedAt time.Time
}

// SourceAccount is a connected streaming-provider account.
type SourceAccount struct {
	ID         int64
	Provider   string
	ExternalID string
	CreatedAt  time.Time
}

// OAuthToken stores an encrypted-at-rest refresh token for a SourceAccount.
type OAuthToken struct {
	ID                  int64
	SourceAccountID     int64
	EncryptedAccessToken  []byte
	EncryptedRefreshToken []byte
	Expiry              time.Time
}

// OAuthState is a short-lived PKCE state/verifier pair for one authorize flow.
type OAuthState struct {
	ID           int64
	State        string
	CodeVerifier string
	CreatedAt    time.Time
}
