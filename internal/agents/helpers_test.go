package agents

import (
	"context"
	"errors"
	"sync"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/collector"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/llm"
)

type fakeLLM struct {
	mu      sync.Mutex
	respond func(prompt string, opts llm.Options) (string, error)
	prompts []string
	opts    []llm.Options
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	return f.respond(prompt, opts)
}

func failingLLM() *fakeLLM {
	return &fakeLLM{respond: func(string, llm.Options) (string, error) {
		return "", &llm.Error{Kind: llm.KindTransport, Backend: "fake", Err: errors.New("connection refused")}
	}}
}

func replyLLM(text string) *fakeLLM {
	return &fakeLLM{respond: func(string, llm.Options) (string, error) { return text, nil }}
}

type recordingSink struct {
	mu      sync.Mutex
	entries []LogEntry
	err     error
}

func (s *recordingSink) LogAgentAction(ctx context.Context, entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return s.err
}

func price(p float64) *float64 { return &p }

func teslaQuote() collector.Quote {
	return collector.Quote{Symbol: "TSLA", CurrentPrice: price(250.0), PriceChange30d: 5.0}
}

func marketSample() []collector.Quote {
	return []collector.Quote{
		{Symbol: "TSLA", CurrentPrice: price(250.0), PriceChange30d: 5.0, MarketCap: 800e9, Sector: "Consumer Cyclical"},
		{Symbol: "AAPL", CurrentPrice: price(190.5), PriceChange30d: -2.5, MarketCap: 2900e9, Sector: "Technology"},
		{Symbol: "MSFT", CurrentPrice: price(410.2), PriceChange30d: 3.1, MarketCap: 3000e9, Sector: "Technology"},
		{Symbol: "GOOGL", CurrentPrice: price(160.0), PriceChange30d: 1.2, MarketCap: 2000e9, Sector: "Communication Services"},
		{Symbol: "AMZN", CurrentPrice: price(180.7), PriceChange30d: -0.8, MarketCap: 1900e9, Sector: "Consumer Cyclical"},
		{Symbol: "NVDA", CurrentPrice: price(120.3), PriceChange30d: 12.4, MarketCap: 2950e9, Sector: "Technology"},
	}
}
