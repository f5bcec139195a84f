package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/circuitbreaker"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/llm"
)

const (
	defaultCheckTimeout = 5 * time.Second
	slowThreshold       = 100 * time.Millisecond
)

// RedisHealthChecker checks the task store redis
type RedisHealthChecker struct {
	wrapper *circuitbreaker.RedisWrapper
	logger  *zap.Logger
	timeout time.Duration
}

// NewRedisHealthChecker creates a redis health checker
func NewRedisHealthChecker(wrapper *circuitbreaker.RedisWrapper, logger *zap.Logger) *RedisHealthChecker {
	return &RedisHealthChecker{wrapper: wrapper, logger: logger, timeout: defaultCheckTimeout}
}

func (r *RedisHealthChecker) Name() string           { return "redis" }
func (r *RedisHealthChecker) IsCritical() bool       { return true }
func (r *RedisHealthChecker) Timeout() time.Duration { return r.timeout }

func (r *RedisHealthChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Component: "redis", Critical: true, Timestamp: start}

	if r.wrapper.IsCircuitBreakerOpen() {
		return breakerOpen(result, "Redis", start)
	}

	err := r.wrapper.Ping(ctx)
	result.Duration = time.Since(start)
	if err != nil {
		return pingFailed(result, "Redis", err)
	}

	result.Status, result.Message = byLatency(result.Duration, "Redis")
	result.Details = map[string]any{
		"latency_ms":           result.Duration.Milliseconds(),
		"circuit_breaker_open": false,
	}
	return result
}

// DatabaseHealthChecker checks the audit database
type DatabaseHealthChecker struct {
	wrapper *circuitbreaker.DatabaseWrapper
	logger  *zap.Logger
	timeout time.Duration
}

// NewDatabaseHealthChecker creates a database health checker
func NewDatabaseHealthChecker(wrapper *circuitbreaker.DatabaseWrapper, logger *zap.Logger) *DatabaseHealthChecker {
	return &DatabaseHealthChecker{wrapper: wrapper, logger: logger, timeout: defaultCheckTimeout}
}

func (d *DatabaseHealthChecker) Name() string           { return "database" }
func (d *DatabaseHealthChecker) IsCritical() bool       { return true }
func (d *DatabaseHealthChecker) Timeout() time.Duration { return d.timeout }

func (d *DatabaseHealthChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Component: "database", Critical: true, Timestamp: start}

	if d.wrapper.IsCircuitBreakerOpen() {
		return breakerOpen(result, "Database", start)
	}

	err := d.wrapper.PingContext(ctx)
	result.Duration = time.Since(start)
	if err != nil {
		return pingFailed(result, "Database", err)
	}

	stats := d.wrapper.GetDB().Stats()
	if stats.MaxOpenConnections > 0 && stats.OpenConnections >= stats.MaxOpenConnections {
		result.Status = StatusDegraded
		result.Message = "Database connection pool exhausted"
	} else {
		result.Status, result.Message = byLatency(result.Duration, "Database")
	}

	result.Details = map[string]any{
		"driver":               d.wrapper.DriverName(),
		"latency_ms":           result.Duration.Milliseconds(),
		"open_connections":     stats.OpenConnections,
		"max_open_connections": stats.MaxOpenConnections,
		"in_use_connections":   stats.InUse,
		"circuit_breaker_open": false,
	}
	return result
}

// LLMBackendHealthChecker checks one generation backend. Agents fall back to
// templates when every backend is down, so it is never critical.
type LLMBackendHealthChecker struct {
	backend llm.Client
	logger  *zap.Logger
	timeout time.Duration
}

// NewLLMBackendHealthChecker creates a checker for backend
func NewLLMBackendHealthChecker(backend llm.Client, logger *zap.Logger) *LLMBackendHealthChecker {
	return &LLMBackendHealthChecker{backend: backend, logger: logger, timeout: defaultCheckTimeout}
}

func (l *LLMBackendHealthChecker) Name() string           { return "llm_" + l.backend.Name() }
func (l *LLMBackendHealthChecker) IsCritical() bool       { return false }
func (l *LLMBackendHealthChecker) Timeout() time.Duration { return l.timeout }

func (l *LLMBackendHealthChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Component: l.Name(), Timestamp: start}

	pinger, ok := l.backend.(llm.Pinger)
	if !ok {
		result.Status = StatusUnknown
		result.Message = "Backend does not support health probes"
		return result
	}

	err := pinger.Ping(ctx)
	result.Duration = time.Since(start)
	if err != nil {
		return pingFailed(result, "LLM backend", err)
	}
	result.Status = StatusHealthy
	result.Message = "LLM backend reachable"
	result.Details = map[string]any{"backend": l.backend.Name(), "latency_ms": result.Duration.Milliseconds()}
	return result
}

// CustomHealthChecker wraps a check function
type CustomHealthChecker struct {
	name     string
	critical bool
	timeout  time.Duration
	checkFn  func(ctx context.Context) CheckResult
}

// NewCustomHealthChecker creates a custom health checker
func NewCustomHealthChecker(name string, critical bool, timeout time.Duration, checkFn func(ctx context.Context) CheckResult) *CustomHealthChecker {
	return &CustomHealthChecker{name: name, critical: critical, timeout: timeout, checkFn: checkFn}
}

func (c *CustomHealthChecker) Name() string           { return c.name }
func (c *CustomHealthChecker) IsCritical() bool       { return c.critical }
func (c *CustomHealthChecker) Timeout() time.Duration { return c.timeout }

func (c *CustomHealthChecker) Check(ctx context.Context) CheckResult {
	return c.checkFn(ctx)
}

func breakerOpen(result CheckResult, component string, start time.Time) CheckResult {
	result.Status = StatusUnhealthy
	result.Error = "circuit breaker open"
	result.Message = component + " circuit breaker is open"
	result.Duration = time.Since(start)
	return result
}

func pingFailed(result CheckResult, component string, err error) CheckResult {
	result.Status = StatusUnhealthy
	result.Error = err.Error()
	result.Message = component + " ping failed"
	result.Details = map[string]any{"latency_ms": result.Duration.Milliseconds()}
	return result
}

func byLatency(d time.Duration, component string) (CheckStatus, string) {
	if d > slowThreshold {
		return StatusDegraded, component + " responding but with high latency"
	}
	return StatusHealthy, component + " healthy"
}
