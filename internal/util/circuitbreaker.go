package util

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState represents the state of the circuit breaker
type CircuitState string

const (
	CircuitStateClosed   CircuitState = "CLOSED"
	CircuitStateOpen     CircuitState = "OPEN"
	CircuitStateHalfOpen CircuitState = "HALF_OPEN"
)

func (s CircuitState) String() string {
	return string(s)
}

// CircuitBreaker fails calls fast after a run of consecutive failures against one backend.
// After resetTimeout a single probe is let through (HALF_OPEN); its outcome closes or reopens
// the circuit.
type CircuitBreaker struct {
	name             string
	state            CircuitState
	failureCount     int
	failureThreshold int
	resetTimeout     time.Duration
	openUntil        time.Time
	probing          bool
	now              func() time.Time
	logger           *zap.Logger
	mu               sync.Mutex
}

// NewCircuitBreaker returns nil when failureThreshold is not positive; a nil breaker allows everything.
func NewCircuitBreaker(name string, failureThreshold int, resetTimeout time.Duration, logger *zap.Logger) *CircuitBreaker {
	if failureThreshold <= 0 {
		return nil
	}
	return &CircuitBreaker{
		name:             name,
		state:            CircuitStateClosed,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
		logger:           OrNop(logger),
	}
}

// WithClock replaces the time source. Intended for tests.
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	if cb != nil {
		cb.now = now
	}
	return cb
}

// Allow reports whether a call may proceed. When it may not, the remaining open time is returned.
func (cb *CircuitBreaker) Allow() (bool, time.Duration) {
	if cb == nil {
		return true, 0
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitStateOpen:
		now := cb.now()
		if now.Before(cb.openUntil) {
			return false, cb.openUntil.Sub(now)
		}
		cb.transitionTo(CircuitStateHalfOpen)
		cb.probing = true
		return true, 0
	case CircuitStateHalfOpen:
		// one probe at a time
		if cb.probing {
			return false, 0
		}
		cb.probing = true
		return true, 0
	default:
		return true, 0
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if cb.state != CircuitStateClosed {
		cb.logger.Info("Circuit breaker: backend recovered", zap.String("breaker", cb.name))
		cb.transitionTo(CircuitStateClosed)
	}
	cb.failureCount = 0
}

func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.probing = false

	if cb.state == CircuitStateHalfOpen || cb.failureCount >= cb.failureThreshold {
		cb.openUntil = cb.now().Add(cb.resetTimeout)
		if cb.state != CircuitStateOpen {
			cb.logger.Warn("Circuit breaker: opening circuit",
				zap.String("breaker", cb.name),
				zap.Int("failure_count", cb.failureCount),
				zap.Duration("reset_timeout", cb.resetTimeout),
			)
			cb.transitionTo(CircuitStateOpen)
		}
	}
}

// must be called with lock held
func (cb *CircuitBreaker) transitionTo(newState CircuitState) {
	oldState := cb.state
	cb.state = newState
	if newState == CircuitStateClosed {
		cb.openUntil = time.Time{}
	}

	cb.logger.Debug("Circuit breaker: state transition",
		zap.String("breaker", cb.name),
		zap.String("from", oldState.String()),
		zap.String("to", newState.String()),
	)
}

func (cb *CircuitBreaker) Reset() {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitStateClosed
	cb.failureCount = 0
	cb.probing = false
	cb.openUntil = time.Time{}
}

// CircuitBreakerStatus is a point-in-time snapshot.
type CircuitBreakerStatus struct {
	State        CircuitState
	FailureCount int
	OpenUntil    *time.Time
}

func (cb *CircuitBreaker) Status() CircuitBreakerStatus {
	if cb == nil {
		return CircuitBreakerStatus{State: CircuitStateClosed}
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	status := CircuitBreakerStatus{
		State:        cb.state,
		FailureCount: cb.failureCount,
	}
	if cb.state == CircuitStateOpen {
		until := cb.openUntil
		status.OpenUntil = &until
	}
	return status
}
