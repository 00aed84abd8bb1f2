package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordOverlapScore(t *testing.T) {
	s := WordOverlap{}

	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "the cache is warm", "the cache is warm", 1.0},
		{"case_insensitive", "The Cache Is Warm", "the cache is warm", 1.0},
		{"disjoint", "alpha beta", "gamma delta", 0.0},
		{"empty_left", "", "anything here", 0.0},
		{"empty_right", "anything here", "", 0.0},
		{"half_overlap", "one two three four", "one two five six", 0.5},
		{"normalised_by_larger", "one two", "one two three four", 0.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, s.Score(tc.a, tc.b), 1e-9)
		})
	}
}

func TestWordOverlapSymmetric(t *testing.T) {
	s := WordOverlap{}
	a := "retries exhausted for the ingestion job"
	b := "the ingestion job failed after retries"
	assert.Equal(t, s.Score(a, b), s.Score(b, a))
}
