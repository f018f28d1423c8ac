package leads

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStoreUnavailable is returned while the breaker is open.
var ErrStoreUnavailable = errors.New("lead store unavailable")

// BreakerState represents the state of the store circuit breaker.
type BreakerState int32

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls trip and recovery thresholds.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // half-open successes before closing
	OpenTimeout      time.Duration // how long to stay open before probing
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	return c
}

// BreakerStore wraps a Store with a circuit breaker so a failing database
// does not stall every batch. Not-found results count as successes: the
// store answered.
type BreakerStore struct {
	inner  Store
	cfg    BreakerConfig
	logger *zap.Logger

	mu           sync.Mutex
	state        BreakerState
	failures     int
	successes    int
	lastObserved time.Time
}

// NewBreakerStore wraps inner with breaker behavior.
func NewBreakerStore(inner Store, cfg BreakerConfig, logger *zap.Logger) *BreakerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakerStore{
		inner:  inner,
		cfg:    cfg.withDefaults(),
		logger: logger,
		state:  BreakerClosed,
	}
}

// State reports the current breaker state.
func (b *BreakerStore) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Get delegates to the wrapped store when the breaker allows it.
func (b *BreakerStore) Get(ctx context.Context, id string) (*LeadRecord, error) {
	if err := b.allow(); err != nil {
		return nil, err
	}

	r, err := b.inner.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrLeadNotFound) {
		b.recordFailure()
		return nil, err
	}
	b.recordSuccess()
	return r, err
}

func (b *BreakerStore) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if time.Since(b.lastObserved) >= b.cfg.OpenTimeout {
			b.transition(BreakerHalfOpen)
			return nil
		}
		return ErrStoreUnavailable
	case BreakerHalfOpen:
		return nil
	}
	return nil
}

func (b *BreakerStore) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastObserved = time.Now()
	b.successes = 0
	b.failures++

	switch b.state {
	case BreakerClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.transition(BreakerOpen)
	}
}

func (b *BreakerStore) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastObserved = time.Now()
	b.failures = 0

	if b.state == BreakerHalfOpen {
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(BreakerClosed)
		}
	}
}

// transition assumes b.mu is held.
func (b *BreakerStore) transition(next BreakerState) {
	if b.state == next {
		return
	}
	b.logger.Warn("lead store breaker state change",
		zap.String("from", b.state.String()),
		zap.String("to", next.String()),
		zap.Int("failures", b.failures),
	)
	b.state = next
	b.successes = 0
	if next == BreakerClosed {
		b.failures = 0
	}
}
