package ranking

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultCacheSize bounds the memoized-rank cache used by the bulk
// auto-download path, which may re-rank the same query across retries.
const defaultCacheSize = 256

// CachedRanker memoizes Rank results keyed by the query and candidate set,
// avoiding redundant scoring when the bulk auto-download path retries the
// same playlist track.
type CachedRanker struct {
	cfg   Config
	cache *lru.Cache[string, []Ranked]
}

// NewCachedRanker builds a CachedRanker with the default memoization size.
func NewCachedRanker(cfg Config) (*CachedRanker, error) {
	cache, err := lru.New[string, []Ranked](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create ranking cache: %w", err)
	}

	return &CachedRanker{cfg: cfg, cache: cache}, nil
}

// Rank returns the memoized ranking for query+candidates, computing and
// caching it on a miss.
func (r *CachedRanker) Rank(query Query, candidates []RawCandidate) []Ranked {
	key := cacheKey(query, candidates)

	if cached, ok := r.cache.Get(key); ok {
		return cached
	}

	result := Rank(r.cfg, query, candidates)
	r.cache.Add(key, result)

	return result
}

func cacheKey(query Query, candidates []RawCandidate) string {
	hash := sha256.New()

	fmt.Fprintf(hash, "%s|%s|", query.Artists, query.Title)

	if query.DurationMs != nil {
		fmt.Fprintf(hash, "%d", *query.DurationMs)
	}

	for _, candidate := range candidates {
		fmt.Fprintf(hash, "|%s|%s|%s", candidate.ID, candidate.Title, candidate.Channel)

		if candidate.DurationSec != nil {
			fmt.Fprintf(hash, "|%d", *candidate.DurationSec)
		}
	}

	return strings.ToLower(hex.EncodeToString(hash.Sum(nil)))
}
