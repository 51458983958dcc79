package catalog

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// dedupFilterCapacity and dedupFilterFalsePositiveRate size the bloom
// filter that guards the exact (normalized_artists, normalized_title)
// lookup. Sized for a large personal library; at this rate a 50k-track
// library costs well under a megabyte of filter state.
const (
	dedupFilterCapacity        = 200_000
	dedupFilterFalsePositiveRate = 0.001
)

// dedupIndex is a probabilistic pre-check in front of FindTrackByNormalized.
// A negative answer here is certain (no false negatives), so it lets a bulk
// manual-import path skip the indexed SQL lookup entirely for the common
// case of importing tracks that are not yet in the library. A positive
// answer still requires the real lookup, since the filter can false-positive.
type dedupIndex struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

func newDedupIndex() *dedupIndex {
	return &dedupIndex{
		filter: bloom.NewWithEstimates(dedupFilterCapacity, dedupFilterFalsePositiveRate),
	}
}

func dedupKey(normalizedArtists, normalizedTitle string) []byte {
	return []byte(normalizedArtists + "\x00" + normalizedTitle)
}

// MightExist reports whether a track with this normalized key could already
// be in the catalog. false is a definite answer; true requires confirming
// against the database.
func (d *dedupIndex) MightExist(normalizedArtists, normalizedTitle string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.filter.Test(dedupKey(normalizedArtists, normalizedTitle))
}

// Add records a normalized key as present, e.g. after a successful insert.
func (d *dedupIndex) Add(normalizedArtists, normalizedTitle string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.filter.Add(dedupKey(normalizedArtists, normalizedTitle))
}

// warmDedupIndex loads every existing track's normalized key into the
// filter at startup, so the pre-check is effective from the first import.
func warmDedupIndex(ctx context.Context, index *dedupIndex, store Store) error {
	tracks, err := store.ListTracks(ctx)
	if err != nil {
		return err
	}

	for _, t := range tracks {
		index.Add(t.NormalizedArtists, t.NormalizedTitle)
	}

	return nil
}
