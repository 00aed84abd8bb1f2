package storage

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/strataml/strata/pkg/types"
)

// ErrPersistenceOpen is returned when the circuit breaker is open and writes
// are being rejected to avoid hammering a failing backend.
var ErrPersistenceOpen = errors.New("storage: persistence circuit open")

// BreakerConfig holds the circuit breaker tuning for persistence writes.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive write failures required to
	// trip the circuit. Default: 3.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before allowing a probe
	// write. Default: 30 seconds.
	Timeout time.Duration
}

// DefaultBreakerConfig returns the default persistence breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures: 3,
		Timeout:     30 * time.Second,
	}
}

// BreakerStore decorates a SnapshotStore with a circuit breaker around
// writes. The memory layer must never crash the host agent over a disk
// problem: write failures are logged, counted, and surfaced only through
// Degraded(). Loads pass through untouched; the backends already treat
// load failure as "start empty".
type BreakerStore struct {
	inner   SnapshotStore
	breaker *gobreaker.CircuitBreaker

	mu      sync.Mutex
	lastErr error
}

// NewBreakerStore wraps inner with the default breaker configuration.
func NewBreakerStore(inner SnapshotStore) *BreakerStore {
	return NewBreakerStoreWithConfig(inner, DefaultBreakerConfig())
}

// NewBreakerStoreWithConfig wraps inner with custom breaker tuning.
func NewBreakerStoreWithConfig(inner SnapshotStore, cfg BreakerConfig) *BreakerStore {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	bs := &BreakerStore{inner: inner}
	bs.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "persistence",
		Timeout: cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("storage: persistence breaker %s -> %s", from, to)
		},
	})
	return bs
}

// SaveItems writes the item snapshot through the breaker. A failure is
// recorded and returned; callers are expected to log and continue.
func (b *BreakerStore) SaveItems(items map[string]*types.MemoryItem) error {
	return b.execute(func() error { return b.inner.SaveItems(items) })
}

// SaveTraces writes the trace snapshot through the breaker.
func (b *BreakerStore) SaveTraces(traces []*types.EpisodicTrace) error {
	return b.execute(func() error { return b.inner.SaveTraces(traces) })
}

// LoadItems passes through to the underlying backend.
func (b *BreakerStore) LoadItems() (map[string]*types.MemoryItem, error) {
	return b.inner.LoadItems()
}

// LoadTraces passes through to the underlying backend.
func (b *BreakerStore) LoadTraces() ([]*types.EpisodicTrace, error) {
	return b.inner.LoadTraces()
}

// Close closes the underlying backend.
func (b *BreakerStore) Close() error {
	return b.inner.Close()
}

// Degraded reports whether persistence is currently unhealthy: the breaker is
// open, or the most recent write failed. A successful write clears the flag.
func (b *BreakerStore) Degraded() bool {
	if b.breaker.State() == gobreaker.StateOpen {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr != nil
}

// LastError returns the most recent write error, or nil when the last write
// succeeded.
func (b *BreakerStore) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *BreakerStore) execute(fn func() error) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrPersistenceOpen
	}

	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()

	if err != nil {
		log.Printf("storage: persistence write failed: %v", err)
	}
	return err
}
