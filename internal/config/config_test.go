package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var configEnv = []string{
	"CONFIG_PATH", "LLM_BACKEND", "HUGGINGFACE_API_KEY", "HUGGING_FACE_API", "DATABASE_URL",
	"ENABLE_DATABASE", "REDIS_URL", "API_PORT", "KAFKA_BROKERS", "QUALITY_MIN_REPORT_CHARS",
}

// isolateEnv clears the variables the tests depend on; t.Setenv restores them afterwards
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range configEnv {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendHuggingFace, cfg.LLM.Backend)
	assert.Equal(t, "meta-llama/Meta-Llama-3.1-8B-Instruct", cfg.LLM.HuggingFace.Model)
	assert.Equal(t, "HuggingFaceH4/zephyr-7b-beta", cfg.LLM.HuggingFace.FallbackModel)
	assert.Equal(t, "gemma2:2b", cfg.LLM.Ollama.Model)
	assert.Equal(t, "sqlite:///./data/multiagent.db", cfg.Database.URL)
	assert.True(t, cfg.Database.Enabled)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TaskTTL)
	assert.Equal(t, "localhost:8000", cfg.Addr())
	assert.Equal(t, 2112, cfg.Metrics.Port)
	assert.Equal(t, "task-events", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, QualityConfig{MinReportChars: 120, MinSummaryChars: 40}, cfg.Quality)
	assert.Empty(t, cfg.Path)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolateEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("LLM_BACKEND", "Ollama")
	t.Setenv("HUGGING_FACE_API", "hf_alias")
	t.Setenv("API_PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("QUALITY_MIN_REPORT_CHARS", "300")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendOllama, cfg.LLM.Backend)
	assert.Equal(t, "hf_alias", cfg.LLM.HuggingFace.APIKey)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 300, cfg.Quality.MinReportChars)
}

func TestDatabaseEnabledFlag(t *testing.T) {
	tests := map[string]bool{"0": false, "false": false, "No": false, "": false, "1": true, "yes": true}
	for value, want := range tests {
		t.Run(value, func(t *testing.T) {
			isolateEnv(t)
			t.Chdir(t.TempDir())
			t.Setenv("ENABLE_DATABASE", value)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, want, cfg.Database.Enabled)
		})
	}
}

func TestLoadFileAndValidation(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.yaml")
	writeFile(t, path, `
llm:
  backend: ollama
quality:
  min_report_chars: 200
database:
  enabled: false
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, BackendOllama, cfg.LLM.Backend)
	assert.Equal(t, 200, cfg.Quality.MinReportChars)
	assert.Equal(t, 40, cfg.Quality.MinSummaryChars)
	assert.False(t, cfg.Database.Enabled)

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("ENABLE_DATABASE", "1")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.Database.Enabled, "env wins over the file")

	writeFile(t, path, "llm:\n  backend: openai\n")
	_, err = LoadFile(path)
	assert.ErrorContains(t, err, "invalid LLM_BACKEND")

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestWatcherReloads(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.yaml")
	writeFile(t, path, "quality:\n  min_report_chars: 150\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	w, err := NewWatcher(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Stop()

	changes := make(chan *Config, 4)
	w.OnChange(func(c *Config) { changes <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	writeFile(t, path, "quality:\n  min_report_chars: 500\n")

	select {
	case c := <-changes:
		assert.Equal(t, 500, c.Quality.MinReportChars)
		assert.Equal(t, 500, w.Current().Quality.MinReportChars)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	// an invalid edit keeps the last good config
	writeFile(t, path, "llm:\n  backend: openai\n")
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 500, w.Current().Quality.MinReportChars)
}

func TestWatcherRequiresFile(t *testing.T) {
	_, err := NewWatcher(&Config{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
