package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	// BreakerClosed passes calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cooldown elapses.
	BreakerOpen
	// BreakerHalfOpen lets one trial call through to test recovery.
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

// ErrCircuitOpen is returned for calls rejected by an open Breaker.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig controls a Breaker.
type BreakerConfig struct {
	// Name identifies the guarded service in logs.
	Name string

	// FailureThreshold is the number of consecutive tripping failures that
	// opens the circuit. Default: 5.
	FailureThreshold int

	// Cooldown is how long the circuit stays open before a trial call is allowed.
	// Default: 30s.
	Cooldown time.Duration

	// ShouldTrip decides which errors count as failures. Default: IsTransient,
	// so client errors and caller cancellation never open the circuit.
	ShouldTrip func(err error) bool
}

// Breaker stops calling a failing dependency for a cooldown period after
// FailureThreshold consecutive failures. A nil *Breaker passes every call
// through.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time
	log *zap.Logger

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = IsTransient
	}
	return &Breaker{
		cfg: cfg,
		now: time.Now,
		log: zap.L().With(zap.String("component", "breaker"), zap.String("service", cfg.Name)),
	}
}

// Guard runs fn through b.
func Guard[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}
	val, err := fn()
	b.record(err)
	return val, err
}

// State returns the current state. An open circuit whose cooldown has
// elapsed reports half-open.
func (b *Breaker) State() BreakerState {
	if b == nil {
		return BreakerClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return eris.Wrapf(ErrCircuitOpen, "%s", b.cfg.Name)
		}
		b.setState(BreakerHalfOpen)
		b.probing = true
		return nil
	case BreakerHalfOpen:
		if b.probing {
			return eris.Wrapf(ErrCircuitOpen, "%s: trial call in flight", b.cfg.Name)
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false

	if err == nil || !b.cfg.ShouldTrip(err) {
		b.failures = 0
		if b.state != BreakerClosed {
			b.setState(BreakerClosed)
		}
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.openedAt = b.now()
		if b.state != BreakerOpen {
			b.setState(BreakerOpen)
		}
	}
}

func (b *Breaker) setState(to BreakerState) {
	b.log.Info("circuit state change",
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
		zap.Int("consecutive_failures", b.failures),
	)
	b.state = to
}
