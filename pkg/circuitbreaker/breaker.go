package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config tunes the breaker. Zero fields fall back to settings sized for
// the LLM upstream, which cools off on the same 30 second horizon as
// its request timeout.
type Config struct {
	MaxRequests      uint32        // probes allowed while half-open
	Interval         time.Duration // closed-state streak reset period; 0 keeps streaks indefinitely
	Timeout          time.Duration // open-state cool-off before probing resumes
	FailureThreshold uint32
	SuccessThreshold uint32
	OnStateChange    func(name string, from State, to State)
	Logger           *zap.Logger
}

// CircuitBreaker trips open after a streak of consecutive failures and
// recovers through a limited number of half-open probes.
type CircuitBreaker struct {
	name string
	cfg  Config

	mu     sync.Mutex
	state  State
	epoch  uint64
	tally  tally
	expiry time.Time
}

// tally tracks outcomes within one epoch. Every state change starts a
// fresh epoch with a zero tally, so streaks never leak across states.
type tally struct {
	requests      uint32
	successStreak uint32
	failureStreak uint32
}

func NewCircuitBreaker(name string, cfg Config) *CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 2
	}

	cb := &CircuitBreaker{name: name, cfg: cfg}
	cb.nextEpoch(time.Now())
	return cb
}

// Execute runs fn under the breaker. A panic counts as a failure before
// it propagates.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	epoch, err := cb.admit()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.record(epoch, false)
			panic(r)
		}
	}()

	err = fn()
	cb.record(epoch, err == nil)
	return err
}

// State reports the current state, advancing an expired open state to
// half-open first.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state, _ := cb.currentState(time.Now())
	return state
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state, epoch := cb.currentState(time.Now())

	if state == StateOpen {
		return epoch, ErrCircuitOpen
	}
	if state == StateHalfOpen && cb.tally.requests >= cb.cfg.MaxRequests {
		return epoch, ErrTooManyRequests
	}

	cb.tally.requests++
	return epoch, nil
}

// record applies an outcome. Outcomes from a previous epoch are stale;
// the state machine already moved on without them.
func (cb *CircuitBreaker) record(epoch uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state, current := cb.currentState(now)
	if current != epoch {
		return
	}

	if success {
		cb.tally.successStreak++
		cb.tally.failureStreak = 0
		if state == StateHalfOpen && cb.tally.successStreak >= cb.cfg.SuccessThreshold {
			cb.transition(StateClosed, now)
		}
		return
	}

	cb.tally.failureStreak++
	cb.tally.successStreak = 0
	if state == StateHalfOpen || cb.tally.failureStreak >= cb.cfg.FailureThreshold {
		cb.transition(StateOpen, now)
	}
}

func (cb *CircuitBreaker) currentState(now time.Time) (State, uint64) {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.nextEpoch(now)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.transition(StateHalfOpen, now)
		}
	}
	return cb.state, cb.epoch
}

func (cb *CircuitBreaker) transition(state State, now time.Time) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state
	cb.nextEpoch(now)

	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, prev, state)
	}

	if cb.cfg.Logger != nil {
		cb.cfg.Logger.Info("Circuit breaker state changed",
			zap.String("name", cb.name),
			zap.String("from", prev.String()),
			zap.String("to", state.String()),
		)
	}
}

func (cb *CircuitBreaker) nextEpoch(now time.Time) {
	cb.epoch++
	cb.tally = tally{}

	switch cb.state {
	case StateClosed:
		if cb.cfg.Interval > 0 {
			cb.expiry = now.Add(cb.cfg.Interval)
		} else {
			cb.expiry = time.Time{}
		}
	case StateOpen:
		cb.expiry = now.Add(cb.cfg.Timeout)
	default:
		cb.expiry = time.Time{}
	}
}
