package sync

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/zmb3/spotify/v2"
)

// spotifyClientFor builds a typed Spotify client authenticated with token,
// following paulangton-potentials-utils's auth.NewClient(token) pairing but
// updated to the v2 client's http.Client-based construction.
func (i *Ingestor) spotifyClientFor(ctx context.Context, token *oauth2.Token) *spotify.Client {
	httpClient := i.oauthConfig().Client(ctx, token)

	return spotify.New(httpClient)
}

// clientForAccount loads and, if needed, refreshes the stored token for
// accountID, then returns an authenticated client.
func (i *Ingestor) clientForAccount(ctx context.Context, accountID int64) (*spotify.Client, error) {
	token, err := i.loadToken(ctx, accountID)
	if err != nil {
		return nil, err
	}

	source := i.oauthConfig().TokenSource(ctx, token)

	refreshed, err := source.Token()
	if err != nil {
		return nil, err
	}

	if refreshed.AccessToken != token.AccessToken {
		if err := i.persistToken(ctx, accountID, refreshed); err != nil {
			return nil, err
		}
	}

	return i.spotifyClientFor(ctx, refreshed), nil
}
