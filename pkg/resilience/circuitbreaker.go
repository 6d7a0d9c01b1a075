// Package resilience guards calls to optional backing services.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed allows all requests through
	StateClosed State = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen lets a single probe through to test recovery
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitBreakerOpen is returned when the circuit breaker is open
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// StateChangeFunc is called after every transition, outside the breaker lock.
type StateChangeFunc func(from, to State)

// CircuitBreaker opens after MaxFailures consecutive failures and rejects
// calls until ResetTimeout has passed. Then one probe decides whether it
// closes again.
type CircuitBreaker struct {
	maxFailures   int
	resetTimeout  time.Duration
	onStateChange StateChangeFunc
	now           func() time.Time

	mu           sync.Mutex
	state        State
	failures     int
	probing      bool
	lastFailTime time.Time
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithStateChange registers fn for state transitions.
func WithStateChange(fn StateChangeFunc) Option {
	return func(cb *CircuitBreaker) { cb.onStateChange = fn }
}

// NewCircuitBreaker creates a closed circuit breaker. maxFailures below 1 is treated as 1.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	cb := &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Execute runs fn if the circuit breaker allows it
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitBreakerOpen
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	var changed func()
	allowed := false
	switch cb.state {
	case StateClosed:
		allowed = true
	case StateOpen:
		if cb.now().Sub(cb.lastFailTime) >= cb.resetTimeout {
			changed = cb.transition(StateHalfOpen)
			cb.probing = true
			allowed = true
		}
	case StateHalfOpen:
		if !cb.probing {
			cb.probing = true
			allowed = true
		}
	}
	cb.mu.Unlock()
	if changed != nil {
		changed()
	}
	return allowed
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	var changed func()
	if err != nil {
		cb.lastFailTime = cb.now()
		switch cb.state {
		case StateHalfOpen:
			cb.probing = false
			changed = cb.transition(StateOpen)
		case StateClosed:
			cb.failures++
			if cb.failures >= cb.maxFailures {
				changed = cb.transition(StateOpen)
			}
		}
	} else {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.probing = false
			changed = cb.transition(StateClosed)
		}
	}
	cb.mu.Unlock()
	if changed != nil {
		changed()
	}
}

// transition must be called with mu held; the returned func notifies the listener.
func (cb *CircuitBreaker) transition(to State) func() {
	from := cb.state
	cb.state = to
	if to != StateClosed {
		cb.failures = 0
	}
	if cb.onStateChange == nil || from == to {
		return nil
	}
	notify := cb.onStateChange
	return func() { notify(from, to) }
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit breaker.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	changed := cb.transition(StateClosed)
	cb.failures = 0
	cb.probing = false
	cb.mu.Unlock()
	if changed != nil {
		changed()
	}
}
