package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDenyListBlocksTransientMarkers(t *testing.T) {
	dl := DefaultDenyList()

	cases := []struct {
		name    string
		content string
		blocked bool
	}{
		{"chain_of_thought", "storing Intermediate Chain-of-Thought for later", true},
		{"speculative", "this is speculative reasoning about the outage", true},
		{"unverified_claim", "an unverified web claim about pricing", true},
		{"tool_error", "a one-off tool error from curl", true},
		{"transient_pref", "transient preference: dark mode today", true},
		{"plain_fact", "the cache TTL is ninety seconds", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.blocked, dl.Blocked(tc.content))
		})
	}
}

func TestDenyListGlobPatterns(t *testing.T) {
	dl, err := NewDenyList(nil, []string{"*scratch note*", "draft:*"})
	require.NoError(t, err)

	assert.True(t, dl.Blocked("a Scratch Note about refactoring"))
	assert.True(t, dl.Blocked("draft: rewrite the summary section"))
	assert.False(t, dl.Blocked("final summary of the meeting"))
}

func TestDenyListRejectsBadGlob(t *testing.T) {
	_, err := NewDenyList(nil, []string{"[unclosed"})
	assert.Error(t, err)
}
