package extractor

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/machinebox/graphql"
	"golang.org/x/net/publicsuffix"

	"github.com/oshokin/trackgrab/internal/logger"
	transporthttp "github.com/oshokin/trackgrab/internal/transport/http"
	"github.com/oshokin/trackgrab/internal/utils"
)

// maxCapturedStderrLines bounds how much of a failed subprocess's stderr is
// captured into the returned error (spec §4.6 step 5: "capture first N
// lines of stderr").
const maxCapturedStderrLines = 20

// realClient shells out to yt-dlp/ffmpeg for download and queries the
// platform's internal search API over GraphQL: an external tool for the
// download itself, machinebox/graphql for metadata lookup.
type realClient struct {
	ytDlpBin      string
	ffmpegBin     string
	httpClient    *http.Client
	graphQLClient *graphql.Client
}

// NewRealClient builds a Client backed by the yt-dlp and ffmpeg binaries
// and a GraphQL search endpoint, with an optional cookie jar for
// authenticated content.
func NewRealClient(ytDlpBin, ffmpegBin, searchGraphQLURL string) (Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	userAgentProvider := utils.NewSimpleUserAgentProvider(transporthttp.DefaultUserAgent)

	transport := transporthttp.NewUserAgentInjector(http.DefaultTransport, userAgentProvider)
	transport = transporthttp.NewLogTransport(transport, 0)

	httpClient := &http.Client{Jar: jar, Timeout: 30 * time.Second, Transport: transport}

	return &realClient{
		ytDlpBin:      ytDlpBin,
		ffmpegBin:     ffmpegBin,
		httpClient:    httpClient,
		graphQLClient: graphql.NewClient(searchGraphQLURL, graphql.WithHTTPClient(httpClient)),
	}, nil
}

// searchHit is the shape of one result row from the search GraphQL query.
type searchHit struct {
	VideoID     string `json:"videoId"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	ChannelName string `json:"channelName"`
	DurationSec int64  `json:"durationSeconds"`
}

func (c *realClient) Search(ctx context.Context, query SearchQuery, opts SearchOptions) ([]RawCandidate, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	searchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var all []RawCandidate

	bestScore := 0.0
	pages := opts.MaxPages

	if pages <= 0 {
		pages = 1
	}

	for page := 0; page < pages; page++ {
		hits, err := c.searchPage(searchCtx, query, page, opts.PageSize)
		if err != nil {
			if searchCtx.Err() != nil {
				logger.Warnf(ctx, "search timed out after %d page(s): %v", page, err)

				return []RawCandidate{}, nil
			}

			return nil, err
		}

		for _, hit := range hits {
			all = append(all, toRawCandidate(hit))
		}

		if opts.StopScore > 0 && bestScore >= opts.StopScore {
			break
		}

		if len(hits) == 0 {
			break
		}
	}

	return all, nil
}

func (c *realClient) searchPage(ctx context.Context, query SearchQuery, page, pageSize int) ([]searchHit, error) {
	request := graphql.NewRequest(`
		query search($q: String!, $page: Int!, $pageSize: Int!) {
			search(query: $q, page: $page, pageSize: $pageSize) {
				videoId
				url
				title
				channelName
				durationSeconds
			}
		}
	`)

	request.Var("q", strings.TrimSpace(query.Artists+" "+query.Title))
	request.Var("page", page)
	request.Var("pageSize", pageSize)

	var response struct {
		Search []searchHit `json:"search"`
	}

	if err := c.graphQLClient.Run(ctx, request, &response); err != nil {
		return nil, fmt.Errorf("search page %d failed: %w", page, err)
	}

	return response.Search, nil
}

func toRawCandidate(hit searchHit) RawCandidate {
	var duration *int64
	if hit.DurationSec > 0 {
		d := hit.DurationSec
		duration = &d
	}

	return RawCandidate{
		ExternalID:  hit.VideoID,
		URL:         hit.URL,
		Title:       hit.Title,
		Channel:     hit.ChannelName,
		DurationSec: duration,
	}
}

// Download invokes yt-dlp to fetch and extract audio, then recomputes a
// checksum over the resulting file.
func (c *realClient) Download(ctx context.Context, ref string, opts DownloadOptions) (*DownloadResult, error) {
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	outputTemplate := filepath.Join(opts.OutputDir, "%(id)s.%(ext)s")

	args := []string{
		ref,
		"--no-playlist",
		"--extract-audio",
		"--audio-format", opts.PreferredAudioFormat,
		"--ffmpeg-location", c.ffmpegBin,
		"-o", outputTemplate,
	}

	if opts.EmbedThumbnail {
		args = append(args, "--embed-thumbnail")
	}

	if opts.SpeedLimitBytesPerSec > 0 {
		args = append(args, "--limit-rate", strconv.FormatInt(opts.SpeedLimitBytesPerSec, 10))
	}

	if opts.CookieJarFile != "" {
		args = append(args, "--cookies", opts.CookieJarFile)
	}

	if opts.ExtractorArgs != "" {
		args = append(args, "--extractor-args", opts.ExtractorArgs)
	}

	cmd := exec.CommandContext(ctx, c.ytDlpBin, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrDownloadFailed, err, firstLines(stderr.String(), maxCapturedStderrLines))
	}

	filePath, err := locateDownloadedFile(opts.OutputDir, opts.PreferredAudioFormat)
	if err != nil {
		return nil, err
	}

	checksum, size, err := checksumFile(filePath)
	if err != nil {
		return nil, err
	}

	return &DownloadResult{
		Filepath:  filePath,
		Container: opts.PreferredAudioFormat,
		Bytes:     size,
		Checksum:  checksum,
	}, nil
}

func locateDownloadedFile(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read output dir: %w", err)
	}

	var newest os.DirEntry

	var newestModTime time.Time

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "."+ext) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if newest == nil || info.ModTime().After(newestModTime) {
			newest = entry
			newestModTime = info.ModTime()
		}
	}

	if newest == nil {
		return "", fmt.Errorf("%w: no .%s file produced in %s", ErrDownloadFailed, ext, dir)
	}

	return filepath.Join(dir, newest.Name()), nil
}

func checksumFile(path string) (checksum string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hash := sha256.New()

	written, err := io.Copy(hash, f)
	if err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(hash.Sum(nil)), written, nil
}

func firstLines(s string, n int) string {
	scanner := bufio.NewScanner(strings.NewReader(s))

	var lines []string

	for i := 0; i < n && scanner.Scan(); i++ {
		lines = append(lines, scanner.Text())
	}

	return strings.Join(lines, "\n")
}
