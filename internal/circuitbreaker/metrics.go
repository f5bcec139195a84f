package circuitbreaker

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "multiagent_circuit_breaker_state",
			Help: "Breaker position per dependency (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name", "service"},
	)

	breakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiagent_circuit_breaker_requests_total",
			Help: "Calls routed through a breaker by state and result",
		},
		[]string{"name", "service", "state", "result"},
	)

	breakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiagent_circuit_breaker_state_changes_total",
			Help: "Breaker state transitions",
		},
		[]string{"name", "service", "from_state", "to_state"},
	)

	breakerOpenSince = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "multiagent_circuit_breaker_open_since_seconds",
			Help: "Unix time the breaker last opened, 0 while closed",
		},
		[]string{"name", "service"},
	)
)

type breakerKey struct {
	name    string
	service string
}

// MetricsCollector exports the state of every registered breaker
type MetricsCollector struct {
	mu       sync.RWMutex
	breakers map[breakerKey]*CircuitBreaker
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{breakers: make(map[breakerKey]*CircuitBreaker)}
}

// GlobalMetricsCollector is shared by the dependency wrappers
var GlobalMetricsCollector = NewMetricsCollector()

// RegisterCircuitBreaker tracks cb under service ("llm", "collector", "database", "redis")
// and chains a state-change hook that records transitions.
func (mc *MetricsCollector) RegisterCircuitBreaker(name, service string, cb *CircuitBreaker) {
	mc.mu.Lock()
	mc.breakers[breakerKey{name: name, service: service}] = cb
	mc.mu.Unlock()

	breakerState.WithLabelValues(name, service).Set(float64(StateClosed))

	next := cb.config.OnStateChange
	cb.config.OnStateChange = func(cbName string, from, to State) {
		if next != nil {
			next(cbName, from, to)
		}
		breakerTransitions.WithLabelValues(name, service, from.String(), to.String()).Inc()
		breakerState.WithLabelValues(name, service).Set(float64(to))
		switch {
		case to == StateOpen:
			breakerOpenSince.WithLabelValues(name, service).SetToCurrentTime()
		case from == StateOpen:
			breakerOpenSince.WithLabelValues(name, service).Set(0)
		}
	}
}

// RecordRequest counts one protected call
func (mc *MetricsCollector) RecordRequest(name, service string, state State, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	breakerRequests.WithLabelValues(name, service, state.String(), result).Inc()
}

// UpdateMetrics refreshes the state gauges. Open breakers move to half-open lazily,
// so polling is what makes that transition visible without traffic.
func (mc *MetricsCollector) UpdateMetrics() {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	for key, cb := range mc.breakers {
		breakerState.WithLabelValues(key.name, key.service).Set(float64(cb.State()))
	}
}

// StartMetricsCollection polls the registered breakers every 10 seconds
func StartMetricsCollection() {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			GlobalMetricsCollector.UpdateMetrics()
		}
	}()
}
