package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CircuitState is one of the three states a channel's breaker can be in.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
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

// CircuitBreakerConfig tunes how many consecutive delivery failures on a
// channel trip its breaker, how long it stays open, and how many
// consecutive successes during the probe window close it again.
type CircuitBreakerConfig struct {
	FailureThreshold      int
	SuccessThreshold      int
	Timeout               time.Duration
	MaxConcurrentRequests int
}

// DefaultCircuitBreakerConfig returns the default per-channel breaker
// tuning: five consecutive delivery failures trip the breaker, it
// probes again after a minute, and two consecutive successes close it.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:      5,
		SuccessThreshold:      2,
		Timeout:               60 * time.Second,
		MaxConcurrentRequests: 1,
	}
}

// BreakerStatus is a point-in-time snapshot of one channel's breaker,
// suitable for structured logging or a future health endpoint.
type BreakerStatus struct {
	Channel              string
	State                CircuitState
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	TotalFailures        int
	TotalSuccesses       int
	OpenedAt             time.Time
}

// CircuitBreaker guards one notification channel's adapter calls from
// hammering a failing downstream (SMTP relay, WhatsApp gateway) once it
// starts erroring consistently. Unlike a bare generic breaker, it knows
// which channel it is protecting and narrates its own state transitions
// through the dispatcher's logger, so an operator sees "email opened
// after 5 consecutive failures" in the run log rather than having to
// poll a stats map.
type CircuitBreaker struct {
	mu sync.RWMutex

	channel string
	config  CircuitBreakerConfig
	logger  zerolog.Logger

	state CircuitState

	consecutiveFailures  int
	consecutiveSuccesses int
	totalFailures        int
	totalSuccesses       int

	lastFailureTime time.Time
	lastStateChange time.Time
	openedAt        time.Time

	halfOpenRequests int
}

// NewCircuitBreaker creates a new breaker for channel in the closed
// state. A zero zerolog.Logger is safe to pass; transitions simply go
// to a disabled logger.
func NewCircuitBreaker(channel string, config CircuitBreakerConfig, logger zerolog.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		channel:         channel,
		config:          config,
		logger:          logger,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Execute runs fn under this channel's breaker protection, recording
// the outcome against the failure/success counters that drive its
// state transitions. ctx is accepted for future deadline propagation;
// the breaker itself does not yet respect cancellation mid-call.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	result := fn()
	cb.record(result)
	return result
}

// admit decides whether a call may proceed given the breaker's current
// state, transitioning Open -> HalfOpen once the timeout has elapsed.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(cb.openedAt) < cb.config.Timeout {
			return cb.openError()
		}
		cb.transitionTo(StateHalfOpen)
		cb.halfOpenRequests = 1
		return nil

	case StateHalfOpen:
		if cb.halfOpenRequests >= cb.config.MaxConcurrentRequests {
			return cb.openError()
		}
		cb.halfOpenRequests++
		return nil

	default:
		return errors.New("circuit breaker: unreachable state")
	}
}

// record applies one call's outcome to the failure/success counters and
// drives any resulting state transition.
func (cb *CircuitBreaker) record(result error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.halfOpenRequests--
	}

	if result != nil {
		cb.recordFailure()
		return
	}
	cb.recordSuccess()
}

func (cb *CircuitBreaker) recordFailure() {
	cb.consecutiveFailures++
	cb.consecutiveSuccesses = 0
	cb.totalFailures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.consecutiveFailures >= cb.config.FailureThreshold {
			cb.openedAt = time.Now()
			cb.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		// A single failure during the probe window re-opens the
		// breaker; the downstream hasn't actually recovered.
		cb.openedAt = time.Now()
		cb.transitionTo(StateOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.consecutiveSuccesses++
	cb.consecutiveFailures = 0
	cb.totalSuccesses++

	if cb.state == StateHalfOpen && cb.consecutiveSuccesses >= cb.config.SuccessThreshold {
		cb.transitionTo(StateClosed)
	}
}

// transitionTo moves the breaker to newState, resetting its counters on
// a return to Closed and logging the transition against this breaker's
// channel. Callers must hold cb.mu.
func (cb *CircuitBreaker) transitionTo(newState CircuitState) {
	if cb.state == newState {
		return
	}
	previous := cb.state
	cb.state = newState
	cb.lastStateChange = time.Now()
	if newState == StateClosed {
		cb.consecutiveFailures = 0
		cb.consecutiveSuccesses = 0
	}

	event := cb.logger.Info()
	if newState == StateOpen {
		event = cb.logger.Warn()
	}
	event.
		Str("channel", cb.channel).
		Str("from", previous.String()).
		Str("to", newState.String()).
		Int("consecutive_failures", cb.consecutiveFailures).
		Msg("circuit breaker state change")
}

func (cb *CircuitBreaker) openError() *CircuitBreakerOpenError {
	return &CircuitBreakerOpenError{Channel: cb.channel, OpenedAt: cb.openedAt, Timeout: cb.config.Timeout}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Status returns a snapshot of the breaker's counters and state.
func (cb *CircuitBreaker) Status() BreakerStatus {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return BreakerStatus{
		Channel:              cb.channel,
		State:                cb.state,
		ConsecutiveFailures:  cb.consecutiveFailures,
		ConsecutiveSuccesses: cb.consecutiveSuccesses,
		TotalFailures:        cb.totalFailures,
		TotalSuccesses:       cb.totalSuccesses,
		OpenedAt:             cb.openedAt,
	}
}

// Reset forces the breaker back to closed, clearing its counters. Used
// by operators recovering a channel manually (e.g. after fixing SMTP
// credentials) without waiting out the timeout.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	cb.halfOpenRequests = 0
	cb.lastStateChange = time.Now()
}

// CircuitBreakerOpenError is returned when a breaker refuses a call.
type CircuitBreakerOpenError struct {
	Channel  string
	OpenedAt time.Time
	Timeout  time.Duration
}

func (e *CircuitBreakerOpenError) Error() string {
	remaining := e.Timeout - time.Since(e.OpenedAt)
	return fmt.Sprintf("circuit breaker open for channel %q, retry in %v", e.Channel, remaining)
}

// CircuitBreakerRegistry lazily creates and keys one breaker per
// channel, so a failing WhatsApp gateway doesn't trip email delivery.
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	config   CircuitBreakerConfig
	logger   zerolog.Logger
}

// NewCircuitBreakerRegistry creates a new registry sharing config and a
// logger across every channel breaker it creates.
func NewCircuitBreakerRegistry(config CircuitBreakerConfig, logger zerolog.Logger) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
		logger:   logger,
	}
}

// Get returns the breaker for channel, creating it on first use.
func (cbr *CircuitBreakerRegistry) Get(channel string) *CircuitBreaker {
	cbr.mu.RLock()
	cb, exists := cbr.breakers[channel]
	cbr.mu.RUnlock()
	if exists {
		return cb
	}

	cbr.mu.Lock()
	defer cbr.mu.Unlock()
	if cb, exists = cbr.breakers[channel]; exists {
		return cb
	}
	cb = NewCircuitBreaker(channel, cbr.config, cbr.logger)
	cbr.breakers[channel] = cb
	return cb
}

// Snapshot returns the current status of every channel breaker created
// so far, for startup/shutdown logging or a future health endpoint.
func (cbr *CircuitBreakerRegistry) Snapshot() []BreakerStatus {
	cbr.mu.RLock()
	defer cbr.mu.RUnlock()
	out := make([]BreakerStatus, 0, len(cbr.breakers))
	for _, cb := range cbr.breakers {
		out = append(out, cb.Status())
	}
	return out
}
