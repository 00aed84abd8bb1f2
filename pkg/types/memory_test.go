package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecayFactorMonotonicallyDecreasing(t *testing.T) {
	item := NewMemoryItem("the parser handles nested blocks", CategoryFactual)
	now := item.Timestamp

	prev := item.DecayFactorAt(now)
	assert.InDelta(t, 1.0, prev, 1e-9)

	for _, hours := range []float64{1, 12, 24, 168, 720, 8760} {
		f := item.DecayFactorAt(now.Add(time.Duration(hours * float64(time.Hour))))
		assert.Less(t, f, prev, "decay must strictly decrease at %v hours", hours)
		assert.Greater(t, f, 0.0)
		prev = f
	}
}

func TestDecayFactorHalvesAtHalfLife(t *testing.T) {
	cases := []struct {
		name     string
		category MemoryCategory
		halfLife float64
	}{
		{"factual_default", CategoryFactual, 168},
		{"procedural_default", CategoryProcedural, 336},
		{"contextual_default", CategoryContextual, 72},
		{"environmental_default", CategoryEnvironmental, 24},
		{"decision_default", CategoryDecision, 48},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := NewMemoryItem("content", tc.category)
			assert.Equal(t, tc.halfLife, item.EffectiveHalfLife())

			at := item.Timestamp.Add(time.Duration(tc.halfLife * float64(time.Hour)))
			assert.InDelta(t, 0.5, item.DecayFactorAt(at), 1e-9)
		})
	}
}

func TestHalfLifeOverride(t *testing.T) {
	item := NewMemoryItem("flaky endpoint", CategoryEnvironmental)
	item.HalfLifeHours = 6

	assert.Equal(t, 6.0, item.EffectiveHalfLife())
	at := item.Timestamp.Add(6 * time.Hour)
	assert.InDelta(t, 0.5, item.DecayFactorAt(at), 1e-9)
}

func TestNeedsVerificationTriggers(t *testing.T) {
	now := time.Now()

	fresh := NewMemoryItem("fresh fact", CategoryFactual)
	assert.False(t, fresh.NeedsVerificationAt(now))

	contested := NewMemoryItem("contested fact", CategoryFactual)
	contested.Status = StatusContested
	assert.True(t, contested.NeedsVerificationAt(now))

	expired := NewMemoryItem("expired fact", CategoryFactual)
	expired.Status = StatusExpired
	assert.True(t, expired.NeedsVerificationAt(now))

	// Past half-life the decay factor drops below 0.5.
	aged := NewMemoryItem("aged fact", CategoryEnvironmental)
	assert.True(t, aged.NeedsVerificationAt(now.Add(25*time.Hour)))
}

func TestItemIDDeterministic(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	a := ItemID("same content", ts)
	b := ItemID("same content", ts)
	c := ItemID("other content", ts)
	d := ItemID("same content", ts.Add(time.Nanosecond))

	assert.Equal(t, a, b)
	assert.Len(t, a, 12)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestMemoryItemJSONRoundTrip(t *testing.T) {
	item := NewMemoryItem("the build uses ninja", CategoryProcedural)
	item.Source = "verified_tool:build-inspector"
	item.Confidence = 0.92
	item.EvidenceRefs = []string{"trace:ab12cd34"}
	item.Touch(time.Now())

	data, err := json.Marshal(item)
	require.NoError(t, err)

	var back MemoryItem
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, item.ID, back.ID)
	assert.Equal(t, item.Content, back.Content)
	assert.Equal(t, item.Category, back.Category)
	assert.Equal(t, item.Scope, back.Scope)
	assert.Equal(t, item.Source, back.Source)
	assert.Equal(t, item.Confidence, back.Confidence)
	assert.Equal(t, item.Status, back.Status)
	assert.Equal(t, item.EvidenceRefs, back.EvidenceRefs)
	assert.Equal(t, item.AccessCount, back.AccessCount)
	assert.True(t, item.Timestamp.Equal(back.Timestamp))
}

func TestParseHelpersRejectUnknownValues(t *testing.T) {
	_, err := ParseCategory("vibes")
	assert.Error(t, err)
	_, err = ParseScope("galaxy")
	assert.Error(t, err)
	_, err = ParseStatus("undead")
	assert.Error(t, err)

	c, err := ParseCategory("factual")
	require.NoError(t, err)
	assert.Equal(t, CategoryFactual, c)
}

func TestNewEpisodicTraceCompressesSummary(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}

	tr := NewEpisodicTrace("tool_call", string(long), nil)
	assert.Len(t, tr.Summary, 300)
	assert.Len(t, tr.TraceID, 8)
	assert.NotNil(t, tr.Metadata)
}
