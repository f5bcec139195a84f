package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/circuitbreaker"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/metrics"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/tracing"
	"go.uber.org/zap"
)

const (
	BackendHuggingFace     = "huggingface"
	DefaultHuggingFaceURL  = "https://api-inference.huggingface.co/models/"
	huggingFaceUserAgent   = "MultiAgent-AI-System/1.0"
	huggingFaceHTTPTimeout = 120 * time.Second
)

// HuggingFaceConfig configures the inference API client
type HuggingFaceConfig struct {
	APIKey        string
	Model         string
	FallbackModel string
	BaseURL       string
	Timeout       time.Duration
}

// HuggingFace calls the hosted inference API. When the primary model is gated or
// missing it retries once against the fallback model.
type HuggingFace struct {
	cfg    HuggingFaceConfig
	http   *circuitbreaker.HTTPWrapper
	logger *zap.Logger
}

// NewHuggingFace creates a new HuggingFace client
func NewHuggingFace(cfg HuggingFaceConfig, logger *zap.Logger) (*HuggingFace, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("hugging face API key not configured")
	}
	if cfg.Model == "" {
		return nil, errors.New("hugging face model not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultHuggingFaceURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = huggingFaceHTTPTimeout
	}
	hc := &http.Client{Timeout: cfg.Timeout}
	return &HuggingFace{
		cfg:    cfg,
		http:   circuitbreaker.NewHTTPWrapperWithConfig(hc, "huggingface", "llm", circuitbreaker.GetLLMConfig(), logger),
		logger: logger,
	}, nil
}

// Name returns the backend name
func (h *HuggingFace) Name() string { return BackendHuggingFace }

// Generate runs the prompt against the primary model, falling back to the secondary
// model on auth or not-found errors
func (h *HuggingFace) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	opts = opts.withDefaults()
	out, err := h.generateForModel(ctx, h.cfg.Model, prompt, opts)
	if err == nil {
		return out, nil
	}
	if (IsAuth(err) || IsNotFound(err)) && h.cfg.FallbackModel != "" && h.cfg.FallbackModel != h.cfg.Model {
		h.logger.Info("HF primary model unavailable, using fallback model",
			zap.String("model", h.cfg.Model),
			zap.String("fallback_model", h.cfg.FallbackModel),
			zap.Error(err))
		metrics.LLMFallbacks.WithLabelValues(h.cfg.Model, h.cfg.FallbackModel).Inc()
		return h.generateForModel(ctx, h.cfg.FallbackModel, prompt, opts)
	}
	return "", err
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfGeneration struct {
	GeneratedText *string `json:"generated_text"`
}

func (h *HuggingFace) generateForModel(ctx context.Context, model, prompt string, opts Options) (string, error) {
	start := time.Now()
	url := h.cfg.BaseURL + model

	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	fail := func(kind Kind, status int, err error) (string, error) {
		e := &Error{Kind: kind, Backend: BackendHuggingFace, Model: model, Status: status, Err: err}
		metrics.LLMRequests.WithLabelValues(BackendHuggingFace, kind.String()).Inc()
		metrics.LLMLatency.WithLabelValues(BackendHuggingFace).Observe(time.Since(start).Seconds())
		tracing.RecordError(span, e)
		return "", e
	}

	body, err := json.Marshal(hfRequest{
		Inputs: prompt,
		Parameters: hfParameters{
			MaxNewTokens:   opts.MaxTokens,
			Temperature:    opts.Temperature,
			ReturnFullText: false,
		},
	})
	if err != nil {
		return fail(KindTransport, 0, fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fail(KindTransport, 0, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Wait-For-Model", "true")
	req.Header.Set("User-Agent", huggingFaceUserAgent)
	tracing.InjectTraceparent(ctx, req)

	resp, err := h.http.Do(req)
	if err != nil {
		return fail(KindTransport, 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fail(KindTransport, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode >= 400 {
		return fail(KindForStatus(resp.StatusCode), resp.StatusCode, fmt.Errorf("hugging face API error: %s", strings.TrimSpace(string(raw))))
	}

	text, err := decodeGeneration(raw)
	if err != nil {
		return fail(KindTransport, resp.StatusCode, err)
	}

	metrics.LLMRequests.WithLabelValues(BackendHuggingFace, "success").Inc()
	metrics.LLMLatency.WithLabelValues(BackendHuggingFace).Observe(time.Since(start).Seconds())
	return text, nil
}

// decodeGeneration accepts both the list and the object response shapes. Any other
// JSON document is returned verbatim as text.
func decodeGeneration(raw []byte) (string, error) {
	var list []hfGeneration
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) > 0 && list[0].GeneratedText != nil {
			return *list[0].GeneratedText, nil
		}
		return string(raw), nil
	}
	var single hfGeneration
	if err := json.Unmarshal(raw, &single); err == nil {
		if single.GeneratedText != nil {
			return *single.GeneratedText, nil
		}
		return string(raw), nil
	}
	return "", fmt.Errorf("failed to decode hugging face response: %s", truncate(raw, 200))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Ping reports the breaker state only; probing the inference API would spend quota.
func (h *HuggingFace) Ping(ctx context.Context) error {
	if h.http.IsCircuitBreakerOpen() {
		return errors.New("hugging face circuit breaker open")
	}
	return nil
}
