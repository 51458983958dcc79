package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	store, err := Open(context.Background(), "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestCreateTrack_AutoCreatesManualIdentity(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	track, err := store.CreateTrack(ctx, &Track{
		Artists: "Block & Crown", Title: "Lonely Heart",
		NormalizedArtists: "block & crown", NormalizedTitle: "lonely heart",
	})
	require.NoError(t, err)
	require.NotZero(t, track.ID)

	identities, err := store.ListIdentitiesForTrack(ctx, track.ID)
	require.NoError(t, err)
	require.Len(t, identities, 1)
	assert.Equal(t, ProviderManual, identities[0].Provider)
}

func TestCreateTrack_DuplicateNormalizedKeyRejected(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	track := &Track{
		Artists: "Block & Crown", Title: "Lonely Heart",
		NormalizedArtists: "block & crown", NormalizedTitle: "lonely heart",
	}

	_, err := store.CreateTrack(ctx, track)
	require.NoError(t, err)

	_, err = store.CreateTrack(ctx, track)
	assert.ErrorIs(t, err, ErrDuplicateTrack)
}

func TestChooseCandidate_ClearsSiblings(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	track, err := store.CreateTrack(ctx, &Track{
		Artists: "A", Title: "B", NormalizedArtists: "a", NormalizedTitle: "b",
	})
	require.NoError(t, err)

	c1, err := store.CreateCandidate(ctx, &SearchCandidate{TrackID: track.ID, Provider: "youtube", ExternalID: "one", URL: "u1", Title: "t1"})
	require.NoError(t, err)

	c2, err := store.CreateCandidate(ctx, &SearchCandidate{TrackID: track.ID, Provider: "youtube", ExternalID: "two", URL: "u2", Title: "t2"})
	require.NoError(t, err)

	require.NoError(t, store.ChooseCandidate(ctx, track.ID, c1.ID))

	chosen, err := store.GetChosenCandidate(ctx, track.ID)
	require.NoError(t, err)
	assert.Equal(t, c1.ID, chosen.ID)

	require.NoError(t, store.ChooseCandidate(ctx, track.ID, c2.ID))

	chosen, err = store.GetChosenCandidate(ctx, track.ID)
	require.NoError(t, err)
	assert.Equal(t, c2.ID, chosen.ID)

	all, err := store.ListCandidatesForTrack(ctx, track.ID)
	require.NoError(t, err)

	chosenCount := 0

	for _, c := range all {
		if c.Chosen {
			chosenCount++
		}
	}

	assert.Equal(t, 1, chosenCount)
}

func TestChooseCandidate_UnknownCandidateFails(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	track, err := store.CreateTrack(ctx, &Track{Artists: "A", Title: "B", NormalizedArtists: "a", NormalizedTitle: "b"})
	require.NoError(t, err)

	err = store.ChooseCandidate(ctx, track.ID, 999)
	assert.ErrorIs(t, err, ErrCandidateNotFound)
}

func TestDeleteTrack_CascadesDependents(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	track, err := store.CreateTrack(ctx, &Track{Artists: "A", Title: "B", NormalizedArtists: "a", NormalizedTitle: "b"})
	require.NoError(t, err)

	_, err = store.CreateCandidate(ctx, &SearchCandidate{TrackID: track.ID, Provider: "youtube", ExternalID: "one", URL: "u1", Title: "t1"})
	require.NoError(t, err)

	_, err = store.CreateDownload(ctx, &Download{TrackID: track.ID, Provider: "youtube", Status: DownloadStatusQueued})
	require.NoError(t, err)

	require.NoError(t, store.DeleteTrack(ctx, track.ID))

	_, err = store.GetTrack(ctx, track.ID)
	assert.ErrorIs(t, err, ErrTrackNotFound)

	identities, err := store.ListIdentitiesForTrack(ctx, track.ID)
	require.NoError(t, err)
	assert.Empty(t, identities)

	candidates, err := store.ListCandidatesForTrack(ctx, track.ID)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	downloads, err := store.ListDownloadsForTrack(ctx, track.ID)
	require.NoError(t, err)
	assert.Empty(t, downloads)
}

func TestDeleteTrack_UnknownTrackFails(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	err := store.DeleteTrack(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrTrackNotFound)
}

func TestOAuthState_ConsumedOnce(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	st := &OAuthState{State: "state-123", CodeVerifier: "verifier-abc"}
	require.NoError(t, store.CreateOAuthState(ctx, st))

	got, err := store.ConsumeOAuthState(ctx, "state-123")
	require.NoError(t, err)
	assert.Equal(t, "verifier-abc", got.CodeVerifier)

	_, err = store.ConsumeOAuthState(ctx, "state-123")
	assert.ErrorIs(t, err, ErrOAuthStateNotFound)
}

func TestDedupIndex_NoFalseNegatives(t *testing.T) {
	t.Parallel()

	index := newDedupIndex()
	assert.False(t, index.MightExist("artist", "title"))

	index.Add("artist", "title")
	assert.True(t, index.MightExist("artist", "title"))
}

func TestDownloadHistorySweep_KeepsMostRecent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	track, err := store.CreateTrack(ctx, &Track{Artists: "A", Title: "B", NormalizedArtists: "a", NormalizedTitle: "b"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := store.CreateDownload(ctx, &Download{TrackID: track.ID, Provider: "youtube", Status: DownloadStatusDone})
		require.NoError(t, err)
	}

	deleted, err := store.DeleteDownloadsOlderThanKeep(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	remaining, err := store.ListDownloadsForTrack(ctx, track.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}
