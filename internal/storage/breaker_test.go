package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataml/strata/pkg/types"
)

// fakeStore counts writes and fails on demand.
type fakeStore struct {
	failWrites bool
	saves      int
}

func (f *fakeStore) SaveItems(map[string]*types.MemoryItem) error {
	f.saves++
	if f.failWrites {
		return errors.New("disk full")
	}
	return nil
}

func (f *fakeStore) SaveTraces([]*types.EpisodicTrace) error {
	f.saves++
	if f.failWrites {
		return errors.New("disk full")
	}
	return nil
}

func (f *fakeStore) LoadItems() (map[string]*types.MemoryItem, error) {
	return map[string]*types.MemoryItem{}, nil
}

func (f *fakeStore) LoadTraces() ([]*types.EpisodicTrace, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

func TestHealthyWritesPassThrough(t *testing.T) {
	inner := &fakeStore{}
	bs := NewBreakerStore(inner)

	require.NoError(t, bs.SaveItems(nil))
	require.NoError(t, bs.SaveTraces(nil))
	assert.Equal(t, 2, inner.saves)
	assert.False(t, bs.Degraded())
	assert.NoError(t, bs.LastError())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeStore{failWrites: true}
	bs := NewBreakerStoreWithConfig(inner, BreakerConfig{MaxFailures: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		assert.Error(t, bs.SaveItems(nil))
	}
	assert.True(t, bs.Degraded())

	// The open breaker rejects without touching the backend.
	before := inner.saves
	err := bs.SaveItems(nil)
	assert.ErrorIs(t, err, ErrPersistenceOpen)
	assert.Equal(t, before, inner.saves)
}

func TestDegradedClearsOnSuccess(t *testing.T) {
	inner := &fakeStore{failWrites: true}
	bs := NewBreakerStoreWithConfig(inner, BreakerConfig{MaxFailures: 5, Timeout: time.Minute})

	require.Error(t, bs.SaveItems(nil))
	assert.True(t, bs.Degraded(), "a failed last write degrades even before the circuit trips")

	inner.failWrites = false
	require.NoError(t, bs.SaveItems(nil))
	assert.False(t, bs.Degraded())
}

func TestLoadsBypassBreaker(t *testing.T) {
	inner := &fakeStore{failWrites: true}
	bs := NewBreakerStoreWithConfig(inner, BreakerConfig{MaxFailures: 1, Timeout: time.Minute})

	require.Error(t, bs.SaveItems(nil))

	items, err := bs.LoadItems()
	require.NoError(t, err)
	assert.NotNil(t, items)
}

func TestZeroConfigGetsDefaults(t *testing.T) {
	bs := NewBreakerStoreWithConfig(&fakeStore{}, BreakerConfig{})
	require.NoError(t, bs.SaveItems(nil))
	assert.False(t, bs.Degraded())
}
