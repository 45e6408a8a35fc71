// Package circuit provides per-provider circuit breakers.
// A breaker trips after repeated failures and fails calls fast until the
// recovery timeout elapses, then admits a single probe.
package circuit

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed means the circuit is operating normally
	StateClosed State = iota
	// StateOpen means the circuit is tripped and calls are blocked
	StateOpen
	// StateHalfOpen means the circuit is testing if the provider has recovered
	StateHalfOpen
)

// String returns the state as a string
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

// Config configures the circuit breaker behavior
type Config struct {
	// FailureThreshold is the number of consecutive failures before opening
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before a probe
	RecoveryTimeout time.Duration
}

// DefaultConfig returns the aggregator defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 10,
		RecoveryTimeout:  60 * time.Second,
	}
}

// Breaker implements the circuit breaker pattern for one provider key.
type Breaker struct {
	mu sync.RWMutex

	config Config
	state  State
	name   string

	consecutiveFailures   int
	lastError             error
	openedAt              time.Time
	halfOpenProbeInFlight bool

	totalFailures  int64
	totalSuccesses int64
	totalTrips     int64
}

// NewBreaker creates a new circuit breaker with the given configuration
func NewBreaker(name string, config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 10
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	return &Breaker{
		config: config,
		state:  StateClosed,
		name:   name,
	}
}

// Allow checks if a call should be admitted. In the open state, the first
// check after the recovery timeout transitions to half-open and admits a
// single probe; further calls are blocked until the probe resolves.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(b.openedAt) >= b.config.RecoveryTimeout {
			b.state = StateHalfOpen
			b.halfOpenProbeInFlight = true
			log.Info().
				Str("breaker", b.name).
				Str("state", "half-open").
				Msg("Circuit breaker admitting recovery probe")
			return true
		}
		return false

	case StateHalfOpen:
		if b.halfOpenProbeInFlight {
			return false
		}
		b.halfOpenProbeInFlight = true
		return true

	default:
		return true
	}
}

// RecordSuccess records a successful call. A successful half-open probe
// closes the circuit; successes in closed reset the failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.totalSuccesses++

	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.halfOpenProbeInFlight = false
		log.Info().
			Str("breaker", b.name).
			Str("state", "closed").
			Msg("Circuit breaker recovered and closed")
	}
}

// RecordFailure records a failed call. Reaching the threshold in closed, or
// any failure in half-open, opens the circuit.
func (b *Breaker) RecordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastError = err
	b.totalFailures++

	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.config.FailureThreshold {
			b.trip(err)
		}

	case StateHalfOpen:
		b.halfOpenProbeInFlight = false
		b.trip(err)
	}
}

func (b *Breaker) trip(err error) {
	b.state = StateOpen
	b.openedAt = time.Now()
	b.halfOpenProbeInFlight = false
	b.totalTrips++

	log.Warn().
		Str("breaker", b.name).
		Int("failures", b.consecutiveFailures).
		Err(err).
		Msg("Circuit breaker tripped")
}

// Reset returns the circuit breaker to the closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.consecutiveFailures = 0
	b.lastError = nil
	b.halfOpenProbeInFlight = false
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// RetryIn returns how long until the open circuit admits a probe.
// Zero when the circuit is not open or the timeout already elapsed.
func (b *Breaker) RetryIn() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.state != StateOpen {
		return 0
	}
	remaining := b.config.RecoveryTimeout - time.Since(b.openedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Status is a snapshot of a breaker for diagnostics output.
type Status struct {
	Name                string        `json:"name"`
	State               string        `json:"state"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastError           string        `json:"last_error,omitempty"`
	TotalFailures       int64         `json:"total_failures"`
	TotalSuccesses      int64         `json:"total_successes"`
	TotalTrips          int64         `json:"total_trips"`
	TimeUntilRetry      time.Duration `json:"time_until_retry_ms,omitempty"`
}

// GetStatus returns the current status of the circuit breaker
func (b *Breaker) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	status := Status{
		Name:                b.name,
		State:               b.state.String(),
		ConsecutiveFailures: b.consecutiveFailures,
		TotalFailures:       b.totalFailures,
		TotalSuccesses:      b.totalSuccesses,
		TotalTrips:          b.totalTrips,
	}
	if b.lastError != nil {
		status.LastError = b.lastError.Error()
	}
	if b.state == StateOpen {
		retryIn := b.config.RecoveryTimeout - time.Since(b.openedAt)
		if retryIn > 0 {
			status.TimeUntilRetry = retryIn
		}
	}
	return status
}
