// Package similarity isolates the text-similarity heuristic behind a small
// interface so the word-overlap default can later be swapped for an
// embedding-based scorer without touching calling code.
package similarity

import "strings"

// Scorer computes a similarity score in [0.0, 1.0] between two texts.
type Scorer interface {
	Score(a, b string) float64
}

// WordOverlap is the default scorer: case-insensitive word-set overlap
// normalised by the larger set. Deliberately simple: behavioral parity with
// the thresholds tuned against it (0.8 dedup, 0.5/0.3 contradiction gates)
// matters more than semantic accuracy here.
type WordOverlap struct{}

// Score returns the shared word count divided by the larger word-set size.
func (WordOverlap) Score(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0.0
	}

	overlap := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			overlap++
		}
	}

	denom := len(wa)
	if len(wb) > denom {
		denom = len(wb)
	}
	return float64(overlap) / float64(denom)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}
