package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errBackend = errors.New("backend unavailable")

func newTestBreaker(t *testing.T, mutate func(*Config)) *CircuitBreaker {
	t.Helper()
	config := DefaultConfig()
	config.FailureThreshold = 3
	config.SuccessThreshold = 2
	config.MaxRequests = 5
	config.Timeout = 100 * time.Millisecond
	config.Interval = 200 * time.Millisecond
	if mutate != nil {
		mutate(&config)
	}
	return NewCircuitBreaker("test", config, zaptest.NewLogger(t))
}

func TestCircuitBreakerLifecycle(t *testing.T) {
	cb := newTestBreaker(t, nil)
	ctx := context.Background()

	assert.Equal(t, StateClosed, cb.State())

	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.State())

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, func() error { return errBackend }), errBackend)
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.True(t, cb.IsOpen())

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.False(t, called, "open breaker must not invoke the call")

	time.Sleep(150 * time.Millisecond)
	assert.False(t, cb.IsOpen())
	assert.Equal(t, StateHalfOpen, cb.State())

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(t, func(c *Config) { c.FailureThreshold = 1 })
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errBackend })
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(150 * time.Millisecond)
	_ = cb.Execute(ctx, func() error { return errBackend })
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerMaxRequests(t *testing.T) {
	cb := newTestBreaker(t, func(c *Config) {
		c.MaxRequests = 2
		c.SuccessThreshold = 5
	})
	ctx := context.Background()

	clock := time.Now()
	cb.now = func() time.Time { return clock }
	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func() error { return errBackend })
	}
	require.Equal(t, StateOpen, cb.State())

	clock = clock.Add(time.Second)
	require.Equal(t, StateHalfOpen, cb.State())

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	}
	assert.ErrorIs(t, cb.Execute(ctx, func() error { return nil }), ErrTooManyRequests)
}

func TestCircuitBreakerCounts(t *testing.T) {
	cb := newTestBreaker(t, nil)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return nil })
	_ = cb.Execute(ctx, func() error { return errBackend })
	_ = cb.Execute(ctx, func() error { return nil })

	counts := cb.Counts()
	assert.Equal(t, uint32(3), counts.Requests)
	assert.Equal(t, uint32(2), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveFailures)
}

func TestCircuitBreakerIsSuccessful(t *testing.T) {
	errMiss := errors.New("not found")
	cb := newTestBreaker(t, func(c *Config) {
		c.FailureThreshold = 2
		c.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, errMiss) }
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, func() error { return errMiss }), errMiss)
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(5), cb.Counts().TotalSuccesses)
}

func TestCircuitBreakerStateChangeCallback(t *testing.T) {
	var transitions [][2]State
	cb := newTestBreaker(t, func(c *Config) {
		c.FailureThreshold = 2
		c.OnStateChange = func(_ string, from, to State) {
			transitions = append(transitions, [2]State{from, to})
		}
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errBackend })
	}

	require.Len(t, transitions, 1)
	assert.Equal(t, [2]State{StateClosed, StateOpen}, transitions[0])
	assert.Equal(t, "test", cb.Name())
}

func TestCircuitBreakerPanicCountsAsFailure(t *testing.T) {
	cb := newTestBreaker(t, func(c *Config) { c.FailureThreshold = 1 })

	assert.Panics(t, func() {
		_ = cb.Execute(context.Background(), func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, cb.State())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CB_LLM_FAILURE_THRESHOLD", "7")
	t.Setenv("CB_LLM_TIMEOUT", "2s")
	t.Setenv("CB_LLM_MAX_REQUESTS", "not-a-number")

	cfg := GetLLMConfig()
	assert.Equal(t, uint32(7), cfg.FailureThreshold)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, uint32(2), cfg.MaxRequests)
	assert.Equal(t, 60*time.Second, cfg.Interval)
}
