// Package resilience provides the fault-tolerance primitives used around
// snapshot fetching: a circuit breaker, exponential-backoff retry and a
// timeout wrapper that also contains panics.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
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

type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	// IsFailure decides whether an error counts against the breaker. Errors
	// that say nothing about the remote's health, such as a missing object,
	// should return false. Nil counts every error.
	IsFailure func(error) bool
	// OnStateChange is called with the breaker lock held; it must not call
	// back into the breaker.
	OnStateChange func(name string, from, to State)
}

func defaultCBConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    5,
		ResetTimeout:        30 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// Counts is a point-in-time view of a breaker.
type Counts struct {
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	TotalFailures       int64     `json:"totalFailures"`
	Rejected            int64     `json:"rejected"`
	LastFailure         time.Time `json:"lastFailure,omitzero"`
}

// CircuitBreaker trips open after FailureThreshold consecutive failures,
// rejects calls for ResetTimeout, then lets HalfOpenMaxRequests probes
// through to decide whether to close again.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	totalFailures       int64
	rejected            int64
	lastFailureTime     time.Time
	halfOpenRequests    int
}

// NewCircuitBreaker fills zero config values with defaults.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	defaults := defaultCBConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaults.ResetTimeout
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = defaults.HalfOpenMaxRequests
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		state:  StateClosed,
		now:    time.Now,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute runs fn if the circuit allows it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}
	err := fn()
	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Counts{
		State:               cb.state.String(),
		ConsecutiveFailures: cb.consecutiveFailures,
		TotalFailures:       cb.totalFailures,
		Rejected:            cb.rejected,
		LastFailure:         cb.lastFailureTime,
	}
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		since := cb.now().Sub(cb.lastFailureTime)
		if since < cb.cfg.ResetTimeout {
			cb.rejected++
			return fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, cb.name, cb.cfg.ResetTimeout-since)
		}
		cb.setState(StateHalfOpen)
		cb.halfOpenRequests = 1
		cb.logger.Info("circuit half-open, probing", "after", cb.cfg.ResetTimeout)
	case StateHalfOpen:
		if cb.halfOpenRequests >= cb.cfg.HalfOpenMaxRequests {
			cb.rejected++
			return fmt.Errorf("%w: %s (half-open probe limit reached)", ErrCircuitOpen, cb.name)
		}
		cb.halfOpenRequests++
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err == nil || (cb.cfg.IsFailure != nil && !cb.cfg.IsFailure(err)) {
		cb.onSuccess()
		return
	}
	cb.onFailure(err)
}

func (cb *CircuitBreaker) onSuccess() {
	cb.consecutiveFailures = 0
	if cb.state == StateHalfOpen {
		cb.setState(StateClosed)
		cb.halfOpenRequests = 0
		cb.logger.Info("circuit closed, remote recovered")
	}
}

func (cb *CircuitBreaker) onFailure(err error) {
	cb.lastFailureTime = cb.now()
	cb.consecutiveFailures++
	cb.totalFailures++
	switch cb.state {
	case StateClosed:
		if cb.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.setState(StateOpen)
			cb.logger.Warn("circuit opened",
				"consecutive_failures", cb.consecutiveFailures,
				"threshold", cb.cfg.FailureThreshold,
				"error", err,
			)
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
		cb.logger.Warn("circuit re-opened, probe failed", "error", err)
	}
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.consecutiveFailures = 0
	cb.halfOpenRequests = 0
	cb.logger.Info("circuit manually reset")
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	cb.state = to
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}
