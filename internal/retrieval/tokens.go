package retrieval

import (
	"log"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkoukk/tiktoken-go"
)

// TokenEstimator converts text to an approximate token count for budget
// enforcement.
type TokenEstimator interface {
	Estimate(text string) float64
}

// HeuristicEstimator approximates tokens as words x 1.3. Cheap, no model
// files, and good enough for relative budget decisions.
type HeuristicEstimator struct{}

func (HeuristicEstimator) Estimate(text string) float64 {
	return float64(len(strings.Fields(text))) * 1.3
}

// TiktokenEstimator counts real BPE tokens using the cl100k_base encoding.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads the cl100k_base encoding. Falls back to the
// heuristic estimator on failure (the encoding tables are fetched lazily and
// may be unavailable offline).
func NewTiktokenEstimator() TokenEstimator {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Printf("retrieval: tiktoken unavailable, using heuristic estimator: %v", err)
		return HeuristicEstimator{}
	}
	return &TiktokenEstimator{enc: enc}
}

func (t *TiktokenEstimator) Estimate(text string) float64 {
	return float64(len(t.enc.Encode(text, nil, nil)))
}

// CachedEstimator memoizes an estimator behind an LRU keyed by content.
// Memory items are immutable once stored, so entries never go stale.
type CachedEstimator struct {
	inner TokenEstimator
	cache *lru.Cache[string, float64]
}

// NewCachedEstimator wraps inner with an LRU of the given size.
func NewCachedEstimator(inner TokenEstimator, size int) *CachedEstimator {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, float64](size)
	if err != nil {
		// lru.New only fails on non-positive size, guarded above.
		panic(err)
	}
	return &CachedEstimator{inner: inner, cache: cache}
}

func (c *CachedEstimator) Estimate(text string) float64 {
	if v, ok := c.cache.Get(text); ok {
		return v
	}
	v := c.inner.Estimate(text)
	c.cache.Add(text, v)
	return v
}
