// Package circuitbreaker guards the service's outbound dependencies (LLM backends,
// collector sources, the task database and Redis) behind breakers that fail fast.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the breaker position. The numeric value is exported as a gauge.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

var stateNames = map[State]string{
	StateClosed:   "closed",
	StateHalfOpen: "half-open",
	StateOpen:     "open",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	ErrTooManyRequests    = errors.New("too many requests in half-open state")
)

// Config tunes one breaker
type Config struct {
	// MaxRequests caps trial calls while half-open
	MaxRequests uint32
	// Interval resets the closed-state counters; zero keeps them forever
	Interval time.Duration
	// Timeout is how long the breaker stays open before allowing trial calls
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
	OnStateChange    func(name string, from State, to State)

	// IsSuccessful classifies the error of a protected call. Nil means only a nil error succeeds.
	IsSuccessful func(err error) bool
}

func DefaultConfig() Config {
	return Config{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
	}
}

// Counts are reset on every state change and at the end of each closed interval
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) success() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) failure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// CircuitBreaker rejects calls to a dependency after repeated failures
type CircuitBreaker struct {
	name   string
	config Config
	logger *zap.Logger
	now    func() time.Time

	mutex sync.Mutex
	state State
	// generation changes on every reset so late results from an old window are ignored
	generation uint64
	counts     Counts
	expiry     time.Time
}

func NewCircuitBreaker(name string, config Config, logger *zap.Logger) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:   name,
		config: config,
		logger: logger,
		now:    time.Now,
		state:  StateClosed,
	}
	cb.reset(cb.now())
	return cb
}

// Execute runs fn unless the breaker rejects it. The error of fn is returned unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	generation, err := cb.admit()
	if err != nil {
		return err
	}

	settled := false
	defer func() {
		if !settled {
			cb.settle(generation, false)
		}
	}()

	err = fn()
	settled = true
	cb.settle(generation, cb.succeeded(err))
	return err
}

func (cb *CircuitBreaker) succeeded(err error) bool {
	if cb.config.IsSuccessful == nil {
		return err == nil
	}
	return cb.config.IsSuccessful(err)
}

func (cb *CircuitBreaker) Name() string { return cb.name }

// IsOpen reports whether calls are currently rejected outright
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// State returns the position after applying any expired timeout
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.refresh(cb.now())
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.counts
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.refresh(cb.now())
	switch {
	case cb.state == StateOpen:
		return cb.generation, ErrCircuitBreakerOpen
	case cb.state == StateHalfOpen && cb.counts.Requests >= cb.config.MaxRequests:
		return cb.generation, ErrTooManyRequests
	}
	cb.counts.Requests++
	return cb.generation, nil
}

func (cb *CircuitBreaker) settle(generation uint64, ok bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := cb.now()
	cb.refresh(now)
	if generation != cb.generation {
		return
	}

	if ok {
		cb.counts.success()
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
			cb.transition(StateClosed, now)
		}
		return
	}

	cb.counts.failure()
	if cb.state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.config.FailureThreshold {
		cb.transition(StateOpen, now)
	}
}

// refresh applies time-based moves: open to half-open, and the closed-state counter window
func (cb *CircuitBreaker) refresh(now time.Time) {
	if cb.expiry.IsZero() || now.Before(cb.expiry) {
		return
	}
	switch cb.state {
	case StateOpen:
		cb.transition(StateHalfOpen, now)
	case StateClosed:
		cb.reset(now)
	}
}

func (cb *CircuitBreaker) transition(to State, now time.Time) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.reset(now)

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, from, to)
	}
	cb.logger.Info("Circuit breaker state changed",
		zap.String("name", cb.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// reset starts a new generation and sets the expiry for the current state
func (cb *CircuitBreaker) reset(now time.Time) {
	cb.generation++
	cb.counts = Counts{}
	cb.expiry = time.Time{}

	switch cb.state {
	case StateOpen:
		cb.expiry = now.Add(cb.config.Timeout)
	case StateClosed:
		if cb.config.Interval > 0 {
			cb.expiry = now.Add(cb.config.Interval)
		}
	}
}
