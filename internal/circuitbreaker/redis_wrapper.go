package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisService = "task-store"

// RedisWrapper wraps the subset of Redis commands used by the task store with a circuit breaker
type RedisWrapper struct {
	client *redis.Client
	cb     *CircuitBreaker
	logger *zap.Logger
}

// NewRedisWrapper creates a Redis wrapper with circuit breaker
func NewRedisWrapper(client *redis.Client, logger *zap.Logger) *RedisWrapper {
	config := GetRedisConfig().ToConfig()
	// A missing key is a normal answer, not a dependency failure.
	config.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, redis.Nil)
	}
	cb := NewCircuitBreaker("redis", config, logger)
	GlobalMetricsCollector.RegisterCircuitBreaker("redis", redisService, cb)

	return &RedisWrapper{
		client: client,
		cb:     cb,
		logger: logger,
	}
}

// run executes fn through the breaker and records the outcome. The returned error is
// the breaker rejection when the call was short-circuited, otherwise fn's error.
func (rw *RedisWrapper) run(ctx context.Context, fn func() error) error {
	err := rw.cb.Execute(ctx, fn)
	success := err == nil || errors.Is(err, redis.Nil)
	GlobalMetricsCollector.RecordRequest("redis", redisService, rw.cb.State(), success)
	return err
}

// Ping wraps Redis Ping with circuit breaker
func (rw *RedisWrapper) Ping(ctx context.Context) error {
	return rw.run(ctx, func() error {
		return rw.client.Ping(ctx).Err()
	})
}

// Get wraps Redis Get; a missing key returns redis.Nil
func (rw *RedisWrapper) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := rw.run(ctx, func() error {
		var err error
		val, err = rw.client.Get(ctx, key).Result()
		return err
	})
	return val, err
}

// Set wraps Redis Set with circuit breaker
func (rw *RedisWrapper) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return rw.run(ctx, func() error {
		return rw.client.Set(ctx, key, value, expiration).Err()
	})
}

// Del wraps Redis Del and returns the number of removed keys
func (rw *RedisWrapper) Del(ctx context.Context, keys ...string) (int64, error) {
	var n int64
	err := rw.run(ctx, func() error {
		var err error
		n, err = rw.client.Del(ctx, keys...).Result()
		return err
	})
	return n, err
}

// SAdd wraps Redis SAdd with circuit breaker
func (rw *RedisWrapper) SAdd(ctx context.Context, key string, members ...interface{}) error {
	return rw.run(ctx, func() error {
		return rw.client.SAdd(ctx, key, members...).Err()
	})
}

// SRem wraps Redis SRem with circuit breaker
func (rw *RedisWrapper) SRem(ctx context.Context, key string, members ...interface{}) error {
	return rw.run(ctx, func() error {
		return rw.client.SRem(ctx, key, members...).Err()
	})
}

// SMembers wraps Redis SMembers with circuit breaker
func (rw *RedisWrapper) SMembers(ctx context.Context, key string) ([]string, error) {
	var members []string
	err := rw.run(ctx, func() error {
		var err error
		members, err = rw.client.SMembers(ctx, key).Result()
		return err
	})
	return members, err
}

// MGet wraps Redis MGet with circuit breaker
func (rw *RedisWrapper) MGet(ctx context.Context, keys ...string) ([]interface{}, error) {
	var vals []interface{}
	err := rw.run(ctx, func() error {
		var err error
		vals, err = rw.client.MGet(ctx, keys...).Result()
		return err
	})
	return vals, err
}

// Close closes the underlying client
func (rw *RedisWrapper) Close() error {
	return rw.client.Close()
}

// GetClient returns the underlying Redis client
func (rw *RedisWrapper) GetClient() *redis.Client {
	return rw.client
}

// IsCircuitBreakerOpen reports whether Redis calls are currently short-circuited
func (rw *RedisWrapper) IsCircuitBreakerOpen() bool {
	return rw.cb.IsOpen()
}

// IsCircuitBreakerOpen reports whether redis calls are currently short-circuited
func (rw *RedisWrapper) IsCircuitBreakerOpen() bool {
	return rw.cb.IsOpen()
}
