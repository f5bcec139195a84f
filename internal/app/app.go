// Package app builds the collaborators shared by the server and the CLI.
package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/agents"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/collector"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/config"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/llm"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/templates"
)

// NewLogger returns a production logger, or a development logger for LOG_LEVEL=debug
func NewLogger(level string) (*zap.Logger, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "debug" {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zcfg.Build()
}

// BuildLLM chains the configured backend first and the other one second.
// A backend that cannot be constructed is skipped with a warning.
func BuildLLM(cfg *config.Config, logger *zap.Logger) *llm.Chain {
	order := []string{config.BackendHuggingFace, config.BackendOllama}
	if cfg.LLM.Backend == config.BackendOllama {
		order = []string{config.BackendOllama, config.BackendHuggingFace}
	}

	var clients []llm.Client
	for _, name := range order {
		client, err := newBackend(name, cfg, logger)
		if err != nil {
			logger.Warn("LLM backend unavailable", zap.String("backend", name), zap.Error(err))
			continue
		}
		clients = append(clients, client)
	}

	chain := llm.NewChain(logger, clients...)
	logger.Info("LLM backends configured",
		zap.String("primary", cfg.LLM.Backend),
		zap.String("chain", chain.Name()),
		zap.String("huggingface_model", cfg.LLM.HuggingFace.Model),
		zap.String("ollama_model", cfg.LLM.Ollama.Model),
	)
	return chain
}

func newBackend(name string, cfg *config.Config, logger *zap.Logger) (llm.Client, error) {
	switch name {
	case config.BackendHuggingFace:
		return llm.NewHuggingFace(llm.HuggingFaceConfig{
			APIKey:        cfg.LLM.HuggingFace.APIKey,
			Model:         cfg.LLM.HuggingFace.Model,
			FallbackModel: cfg.LLM.HuggingFace.FallbackModel,
			BaseURL:       cfg.LLM.HuggingFace.BaseURL,
			Timeout:       cfg.LLM.Timeout,
		}, logger)
	case config.BackendOllama:
		return llm.NewOllama(llm.OllamaConfig{
			Model:   cfg.LLM.Ollama.Model,
			BaseURL: cfg.LLM.Ollama.BaseURL,
			Timeout: cfg.LLM.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown LLM backend %q", name)
	}
}

// NewCollector builds the HTTP collector with the configured limits
func NewCollector(cfg *config.Config, logger *zap.Logger) *collector.HTTPCollector {
	ccfg := collector.DefaultConfig()
	if cfg.Collector.RequestsPerSecond > 0 {
		ccfg.RequestsPerSecond = cfg.Collector.RequestsPerSecond
	}
	if cfg.Collector.Timeout > 0 {
		ccfg.Timeout = cfg.Collector.Timeout
	}
	return collector.NewHTTPCollector(ccfg, logger)
}

// LoadTemplates reads the prompt set from path, or returns the embedded set
func LoadTemplates(path string) (*templates.Templates, error) {
	if path == "" {
		return templates.Default(), nil
	}
	tpl, err := templates.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	return tpl, nil
}

// Quality maps config thresholds onto the report agent gates. Unset values keep the defaults.
func Quality(cfg *config.Config) agents.Quality {
	q := agents.DefaultQuality()
	if cfg.Quality.MinReportChars > 0 {
		q.MinReportChars = cfg.Quality.MinReportChars
	}
	if cfg.Quality.MinSummaryChars > 0 {
		q.MinSummaryChars = cfg.Quality.MinSummaryChars
	}
	return q
}
