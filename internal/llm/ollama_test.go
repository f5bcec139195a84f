package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOllama_Generate(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gemma2:2b","response":"local answer","done":true}`))
	}))
	defer ts.Close()

	client, err := NewOllama(OllamaConfig{BaseURL: ts.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, BackendOllama, client.Name())

	out, err := client.Generate(context.Background(), "hello", Options{MaxTokens: 220})
	require.NoError(t, err)
	assert.Equal(t, "local answer", out)

	assert.Equal(t, "gemma2:2b", got["model"])
	assert.Equal(t, "hello", got["prompt"])
	assert.Equal(t, false, got["stream"])
	opts, ok := got["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(220), opts["num_predict"])
}

func TestOllama_UnreachableIsTransport(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	client, err := NewOllama(OllamaConfig{BaseURL: url}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hello", Options{})
	require.Error(t, err)
	assert.True(t, IsTransport(err))

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, BackendOllama, llmErr.Backend)
}

func TestNewOllama_InvalidURL(t *testing.T) {
	_, err := NewOllama(OllamaConfig{BaseURL: "://bad"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
