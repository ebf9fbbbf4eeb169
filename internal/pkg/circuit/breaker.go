// Package circuit implements the breaker guarding every remote collaborator
// call: CLOSED/OPEN/HALF-OPEN state machine over a sliding failure window,
// with generic call helpers and pluggable fallbacks.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradepipe/internal/logger"
)

// ErrOpen is returned by Do when the breaker refuses the call.
var ErrOpen = errors.New("circuit breaker open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config tunes one breaker instance.
type Config struct {
	// FailureThreshold trips the breaker once this many failures land
	// inside the sliding window.
	FailureThreshold int
	// Window is the sliding interval failures are counted over.
	Window time.Duration
	// Cooldown is how long the breaker stays OPEN before probing.
	Cooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	return c
}

// Breaker is safe for concurrent use.
type Breaker struct {
	mu            sync.Mutex
	name          string
	cfg           Config
	state         State
	failures      []time.Time // failure timestamps inside the window
	lastFailure   time.Time
	openedAt      time.Time
	onStateChange func(name string, from, to State)
	nowFn         func() time.Time
}

func NewBreaker(name string, cfg Config) *Breaker {
	return &Breaker{
		name:  name,
		cfg:   cfg.withDefaults(),
		state: StateClosed,
		nowFn: time.Now,
	}
}

// Name returns the breaker's dependency label.
func (b *Breaker) Name() string { return b.name }

// SetStateChangeHandler installs an observer for state transitions.
func (b *Breaker) SetStateChangeHandler(handler func(name string, from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = handler
}

// State returns the current state, advancing OPEN -> HALF-OPEN when the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()
	return b.state
}

// Allow reports whether a call may proceed right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()
	return b.state != StateOpen
}

func (b *Breaker) refreshLocked() {
	if b.state == StateOpen && b.nowFn().Sub(b.openedAt) > b.cfg.Cooldown {
		b.transitionLocked(StateHalfOpen)
	}
}

// RecordSuccess notes a successful call; a HALF-OPEN probe success closes
// the breaker and clears the window.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.transitionLocked(StateClosed)
		b.failures = b.failures[:0]
	}
}

// RecordFailure notes a failed call, trips CLOSED -> OPEN when the window
// holds enough failures, and re-opens from a failed HALF-OPEN probe.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.nowFn()
	b.lastFailure = now
	b.failures = append(b.failures, now)
	b.pruneLocked(now)

	switch b.state {
	case StateClosed:
		if len(b.failures) >= b.cfg.FailureThreshold {
			b.openLocked(now)
		}
	case StateHalfOpen:
		b.openLocked(now)
	}
}

func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	i := 0
	for i < len(b.failures) && b.failures[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.failures = append(b.failures[:0], b.failures[i:]...)
	}
}

func (b *Breaker) openLocked(now time.Time) {
	b.openedAt = now
	b.transitionLocked(StateOpen)
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		go b.onStateChange(b.name, from, to)
		return
	}
	logger.Warnf("CircuitBreaker %s state change: %s -> %s (failures=%d/%d, window=%s, cooldown=%s)",
		b.name, from, to, len(b.failures), b.cfg.FailureThreshold, b.cfg.Window, b.cfg.Cooldown)
}

// Exec runs fn under the breaker. An open breaker yields ErrOpen without
// touching the dependency.
func (b *Breaker) Exec(ctx context.Context, fn func(context.Context) error) error {
	if !b.Allow() {
		return ErrOpen
	}
	err := fn(ctx)
	if err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// Do runs a value-returning call under the breaker.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if !b.Allow() {
		return zero, ErrOpen
	}
	v, err := fn(ctx)
	if err != nil {
		b.RecordFailure()
		return zero, err
	}
	b.RecordSuccess()
	return v, nil
}

// DoWithFallback runs fn under the breaker, substituting fallback when the
// breaker is open or the call fails. The fallback's answer is the caller's
// degraded result; its error becomes the final error.
func DoWithFallback[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error), fallback func(context.Context, error) (T, error)) (T, error) {
	v, err := Do(ctx, b, fn)
	if err == nil {
		return v, nil
	}
	return fallback(ctx, err)
}
