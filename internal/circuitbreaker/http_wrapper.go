package circuitbreaker

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPWrapper wraps an http.Client with a circuit breaker and records metrics consistently
type HTTPWrapper struct {
	client  *http.Client
	cb      *CircuitBreaker
	name    string
	service string
	logger  *zap.Logger
}

// NewHTTPWrapper creates an HTTP wrapper using the generic CB_HTTP_* settings
func NewHTTPWrapper(client *http.Client, name, service string, logger *zap.Logger) *HTTPWrapper {
	return NewHTTPWrapperWithConfig(client, name, service, GetHTTPConfig(), logger)
}

// NewHTTPWrapperWithConfig creates an HTTP wrapper with explicit breaker settings
func NewHTTPWrapperWithConfig(client *http.Client, name, service string, cfg CircuitBreakerConfig, logger *zap.Logger) *HTTPWrapper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := NewCircuitBreaker(name, cfg.ToConfig(), logger)
	GlobalMetricsCollector.RegisterCircuitBreaker(name, service, cb)
	return &HTTPWrapper{client: client, cb: cb, name: name, service: service, logger: logger}
}

// Do executes an HTTP request through the circuit breaker. 5xx responses count as
// breaker failures but are still returned to the caller; 4xx never trip the breaker.
func (hw *HTTPWrapper) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := hw.cb.Execute(req.Context(), func() error {
		var doErr error
		resp, doErr = hw.client.Do(req)
		if doErr != nil {
			return doErr
		}
		if resp.StatusCode >= 500 {
			return &httpStatusError{code: resp.StatusCode}
		}
		return nil
	})

	GlobalMetricsCollector.RecordRequest(hw.name, hw.service, hw.cb.State(), err == nil)

	if _, ok := err.(*httpStatusError); ok {
		return resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", hw.name, err)
	}
	return resp, nil
}

// IsCircuitBreakerOpen reports whether requests are currently short-circuited
func (hw *HTTPWrapper) IsCircuitBreakerOpen() bool {
	return hw.cb.IsOpen()
}

// Name returns the breaker name
func (hw *HTTPWrapper) Name() string {
	return hw.name
}

// httpStatusError marks 5xx responses for breaker accounting
type httpStatusError struct{ code int }

func (e *httpStatusError) Error() string { return http.StatusText(e.code) }
