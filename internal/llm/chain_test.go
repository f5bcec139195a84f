package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubClient struct {
	name  string
	out   string
	err   error
	calls int
}

func (s *stubClient) Name() string { return s.name }

func (s *stubClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	s.calls++
	return s.out, s.err
}

func TestChain_PrimarySucceeds(t *testing.T) {
	primary := &stubClient{name: "hf", out: "primary"}
	secondary := &stubClient{name: "ollama", out: "secondary"}
	chain := NewChain(zaptest.NewLogger(t), primary, secondary)

	out, err := chain.Generate(context.Background(), "p", Options{})
	require.NoError(t, err)
	assert.Equal(t, "primary", out)
	assert.Equal(t, 0, secondary.calls)
	assert.Equal(t, "chain:hf:ollama", chain.Name())
}

func TestChain_FallsBackOnEveryKind(t *testing.T) {
	for _, kind := range []Kind{KindAuth, KindNotFound, KindTransport} {
		t.Run(kind.String(), func(t *testing.T) {
			primary := &stubClient{name: "hf", err: &Error{Kind: kind, Backend: "hf"}}
			secondary := &stubClient{name: "ollama", out: "secondary"}
			chain := NewChain(zaptest.NewLogger(t), primary, secondary)

			out, err := chain.Generate(context.Background(), "p", Options{})
			require.NoError(t, err)
			assert.Equal(t, "secondary", out)
		})
	}
}

func TestChain_AllFail(t *testing.T) {
	primary := &stubClient{name: "hf", err: &Error{Kind: KindAuth, Backend: "hf"}}
	secondary := &stubClient{name: "ollama", err: errors.New("connection refused")}
	chain := NewChain(zaptest.NewLogger(t), primary, secondary)

	_, err := chain.Generate(context.Background(), "p", Options{})
	require.Error(t, err)
	assert.True(t, IsAuth(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestChain_StopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	primary := &stubClient{name: "hf", err: context.Canceled}
	secondary := &stubClient{name: "ollama", out: "secondary"}

	_, err := NewChain(zaptest.NewLogger(t), primary, secondary).Generate(ctx, "p", Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, secondary.calls)
}

func TestChain_Empty(t *testing.T) {
	_, err := NewChain(zaptest.NewLogger(t), nil).Generate(context.Background(), "p", Options{})
	assert.ErrorIs(t, err, ErrNoBackends)
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindAuth, KindForStatus(401))
	assert.Equal(t, KindAuth, KindForStatus(403))
	assert.Equal(t, KindNotFound, KindForStatus(404))
	assert.Equal(t, KindTransport, KindForStatus(500))
	assert.Equal(t, KindTransport, KindForStatus(429))
}
