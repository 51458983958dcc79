package extractor

import (
	"context"
	"errors"
	"time"
)

// Client is the capability interface the core depends on for sourcing
// audio from an external video platform. It mirrors the shape of the
// teacher's client.Client interface: a narrow, context-first surface the
// rest of the program depends on instead of the concrete transport.
//
//go:generate go run go.uber.org/mock/mockgen -source=client.go -destination=mocks/client_mock.go -package=mocks
type Client interface {
	// Search runs a general query over the platform, paging internally up
	// to opts.MaxPages of opts.PageSize, and returns raw candidates in
	// whatever order the platform returned them (the ranking engine sorts).
	Search(ctx context.Context, query SearchQuery, opts SearchOptions) ([]RawCandidate, error)
	// Download fetches the audio for ref into opts.OutputDir, converting to
	// opts.PreferredAudioFormat.
	Download(ctx context.Context, ref string, opts DownloadOptions) (*DownloadResult, error)
}

// SearchQuery is the normalized query text handed to the platform search.
type SearchQuery struct {
	Artists string
	Title   string
}

// SearchOptions bounds one Search call.
type SearchOptions struct {
	MaxPages      int
	PageSize      int
	StopScore     float64
	Timeout       time.Duration
	CookieJarFile string
}

// RawCandidate is one unranked search hit, shaped to feed directly into
// ranking.RawCandidate.
type RawCandidate struct {
	ExternalID  string
	URL         string
	Title       string
	Channel     string
	DurationSec *int64
}

// DownloadOptions configures one Download call.
type DownloadOptions struct {
	OutputDir            string
	PreferredAudioFormat string
	ExtractorArgs        string
	CookieJarFile        string
	SpeedLimitBytesPerSec int64
	EmbedThumbnail        bool
}

// DownloadResult describes the file produced by a successful Download.
type DownloadResult struct {
	Filepath      string
	Container     string
	Bytes         int64
	Checksum      string
	ThumbnailPath string
}

// ErrSearchTimedOut names a Search call that exceeded opts.Timeout. The
// clients in this package do not return it: a timed-out search yields an
// empty result and a nil error.
var ErrSearchTimedOut = errors.New("extractor: search timed out")

// ErrDownloadFailed wraps a non-zero exit from the external downloader.
var ErrDownloadFailed = errors.New("extractor: download failed")
