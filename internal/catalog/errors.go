package catalog

import "errors"

// Sentinel errors returned by Store implementations. Callers should use
// errors.Is against these rather than matching on message text.
var (
	ErrTrackNotFound             = errors.New("catalog: track not found")
	ErrPlaylistNotFound          = errors.New("catalog: playlist not found")
	ErrCandidateNotFound         = errors.New("catalog: search candidate not found")
	ErrDownloadNotFound          = errors.New("catalog: download not found")
	ErrAccountNotFound           = errors.New("catalog: source account not found")
	ErrOAuthStateNotFound        = errors.New("catalog: oauth state not found")
	ErrDuplicateTrack            = errors.New("catalog: track already exists for this normalized artists/title pair")
	ErrNonTerminalDownloadExists = errors.New("catalog: a non-terminal download already exists for this track")
)
