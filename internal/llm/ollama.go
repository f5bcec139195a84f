package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/circuitbreaker"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/metrics"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/tracing"
	olla "github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

const (
	BackendOllama      = "ollama"
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "gemma2:2b"
)

// OllamaConfig configures the local Ollama client
type OllamaConfig struct {
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Ollama generates text through a local Ollama server
type Ollama struct {
	client *olla.Client
	model  string
	cb     *circuitbreaker.CircuitBreaker
	logger *zap.Logger
}

// NewOllama creates a new Ollama client
func NewOllama(cfg OllamaConfig, logger *zap.Logger) (*Ollama, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	parsedURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL: %w", err)
	}

	config := circuitbreaker.GetLLMConfig().ToConfig()
	// A missing model is a configuration problem, the server itself is healthy.
	config.IsSuccessful = func(err error) bool {
		return err == nil || IsAuth(err) || IsNotFound(err)
	}
	cb := circuitbreaker.NewCircuitBreaker("ollama", config, logger)
	circuitbreaker.GlobalMetricsCollector.RegisterCircuitBreaker("ollama", "llm", cb)

	return &Ollama{
		client: olla.NewClient(parsedURL, &http.Client{Timeout: cfg.Timeout}),
		model:  cfg.Model,
		cb:     cb,
		logger: logger,
	}, nil
}

// Name returns the backend name
func (o *Ollama) Name() string { return BackendOllama }

// Generate runs a non-streaming generation
func (o *Ollama) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	opts = opts.withDefaults()
	start := time.Now()

	ctx, span := tracing.StartSpan(ctx, "llm.ollama.generate")
	defer span.End()

	stream := false
	var text string
	err := o.cb.Execute(ctx, func() error {
		genErr := o.client.Generate(ctx, &olla.GenerateRequest{
			Model:  o.model,
			Prompt: prompt,
			Stream: &stream,
			Options: map[string]any{
				"num_predict": opts.MaxTokens,
				"temperature": opts.Temperature,
			},
		}, func(resp olla.GenerateResponse) error {
			text += resp.Response
			return nil
		})
		return o.classify(genErr)
	})
	metrics.LLMLatency.WithLabelValues(BackendOllama).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			err = &Error{Kind: KindTransport, Backend: BackendOllama, Model: o.model, Err: err}
		}
		kind, _ := kindOf(err)
		metrics.LLMRequests.WithLabelValues(BackendOllama, kind.String()).Inc()
		tracing.RecordError(span, err)
		return "", err
	}

	metrics.LLMRequests.WithLabelValues(BackendOllama, "success").Inc()
	return text, nil
}

func (o *Ollama) classify(err error) error {
	if err == nil {
		return nil
	}
	var statusErr olla.StatusError
	if errors.As(err, &statusErr) {
		return &Error{
			Kind:    KindForStatus(statusErr.StatusCode),
			Backend: BackendOllama,
			Model:   o.model,
			Status:  statusErr.StatusCode,
			Err:     err,
		}
	}
	return &Error{Kind: KindTransport, Backend: BackendOllama, Model: o.model, Err: err}
}

// Ping checks that the Ollama server answers
func (o *Ollama) Ping(ctx context.Context) error {
	if o.cb.IsOpen() {
		return errors.New("ollama circuit breaker open")
	}
	return o.client.Heartbeat(ctx)
}
