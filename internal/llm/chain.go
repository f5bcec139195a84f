package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/metrics"
	"go.uber.org/zap"
)

// ErrNoBackends is returned by an empty chain
var ErrNoBackends = errors.New("no LLM backends configured")

// Chain tries each backend in order and returns the first successful generation.
// Every failure kind moves on to the next backend; only caller cancellation stops early.
type Chain struct {
	clients []Client
	logger  *zap.Logger
}

// NewChain creates a chain over the non-nil clients, in order
func NewChain(logger *zap.Logger, clients ...Client) *Chain {
	c := &Chain{logger: logger}
	for _, cl := range clients {
		if cl != nil {
			c.clients = append(c.clients, cl)
		}
	}
	return c
}

// Name joins the backend names
func (c *Chain) Name() string {
	name := "chain"
	for _, cl := range c.clients {
		name += ":" + cl.Name()
	}
	return name
}

// Len returns the number of backends
func (c *Chain) Len() int { return len(c.clients) }

// Backends returns the chained clients in order
func (c *Chain) Backends() []Client {
	return append([]Client(nil), c.clients...)
}

// Generate implements Client
func (c *Chain) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if len(c.clients) == 0 {
		return "", ErrNoBackends
	}

	var errs []error
	for i, cl := range c.clients {
		out, err := cl.Generate(ctx, prompt, opts)
		if err == nil {
			return out, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
		if i+1 < len(c.clients) {
			next := c.clients[i+1].Name()
			c.logger.Info("LLM backend failed, falling back",
				zap.String("backend", cl.Name()),
				zap.String("next", next),
				zap.Bool("auth", IsAuth(err)),
				zap.Bool("not_found", IsNotFound(err)),
				zap.Error(err))
			metrics.LLMFallbacks.WithLabelValues(cl.Name(), next).Inc()
		}
	}
	return "", fmt.Errorf("all LLM backends failed: %w", errors.Join(errs...))
}
