package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/oshokin/trackgrab/internal/tagger"
)

// newCoverFetcher builds the tagger's CoverFetcher over a resty client, the
// same HTTP client the pack's own Spotify metadata calls use, so a cover URL
// captured from either Spotify or the extractor's thumbnail is fetched the
// same way regardless of its origin.
func newCoverFetcher() tagger.CoverFetcher {
	client := resty.New().SetTimeout(15 * time.Second)

	return func(ctx context.Context, url string) ([]byte, string, error) {
		resp, err := client.R().SetContext(ctx).Get(url)
		if err != nil {
			return nil, "", fmt.Errorf("fetch cover image: %w", err)
		}

		if resp.IsError() {
			return nil, "", fmt.Errorf("fetch cover image: unexpected status %s", resp.Status())
		}

		return resp.Body(), resp.Header().Get("Content-Type"), nil
	}
}
