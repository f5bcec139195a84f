// Package config loads service settings from .env, an optional YAML file and
// the environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const DefaultConfigPath = "config/agents.yaml"

// LLM backends
const (
	BackendHuggingFace = "huggingface"
	BackendOllama      = "ollama"
)

type HuggingFaceConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	FallbackModel string `mapstructure:"fallback_model"`
	BaseURL       string `mapstructure:"base_url"`
}

type OllamaConfig struct {
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type LLMConfig struct {
	Backend     string            `mapstructure:"backend"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	HuggingFace HuggingFaceConfig `mapstructure:"huggingface"`
	Ollama      OllamaConfig      `mapstructure:"ollama"`
}

type DatabaseConfig struct {
	// Enabled follows ENABLE_DATABASE: "0", "false", "no" and "" disable persistence
	Enabled         bool          `mapstructure:"-"`
	URL             string        `mapstructure:"url"`
	MaxConnections  int           `mapstructure:"max_connections"`
	IdleConnections int           `mapstructure:"idle_connections"`
	MaxLifetime     time.Duration `mapstructure:"max_lifetime"`
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
}

type RedisConfig struct {
	URL     string        `mapstructure:"url"`
	TaskTTL time.Duration `mapstructure:"task_ttl"`
}

type APIConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AuthToken      string        `mapstructure:"auth_token"`
}

type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// QualityConfig holds the minimum lengths an LLM answer needs before it is used
type QualityConfig struct {
	MinReportChars  int `mapstructure:"min_report_chars"`
	MinSummaryChars int `mapstructure:"min_summary_chars"`
}

type CollectorConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type HealthConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// Config is the full service configuration
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	API       APIConfig       `mapstructure:"api"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Quality   QualityConfig   `mapstructure:"quality"`
	Collector CollectorConfig `mapstructure:"collector"`
	Health    HealthConfig    `mapstructure:"health"`

	// TemplatesPath points at a prompt/fallback YAML; empty uses the embedded set
	TemplatesPath string `mapstructure:"templates_path"`

	// Path is the YAML file the config was read from, if any
	Path string `mapstructure:"-"`
}

// envBindings maps config keys to environment variables. The first name wins.
var envBindings = map[string][]string{
	"llm.backend":                    {"LLM_BACKEND"},
	"llm.timeout":                    {"LLM_TIMEOUT"},
	"llm.huggingface.api_key":        {"HUGGINGFACE_API_KEY", "HUGGING_FACE_API"},
	"llm.huggingface.model":          {"HUGGINGFACE_MODEL"},
	"llm.huggingface.fallback_model": {"HUGGINGFACE_FALLBACK_MODEL"},
	"llm.huggingface.base_url":       {"HUGGINGFACE_BASE_URL"},
	"llm.ollama.model":               {"OLLAMA_MODEL"},
	"llm.ollama.base_url":            {"OLLAMA_BASE_URL"},
	"database.url":                   {"DATABASE_URL"},
	"database.max_connections":       {"DATABASE_MAX_CONNECTIONS"},
	"database.workers":               {"DATABASE_WRITE_WORKERS"},
	"redis.url":                      {"REDIS_URL"},
	"redis.task_ttl":                 {"REDIS_TASK_TTL"},
	"api.host":                       {"API_HOST"},
	"api.port":                       {"API_PORT"},
	"api.request_timeout":            {"API_REQUEST_TIMEOUT"},
	"api.auth_token":                 {"API_AUTH_TOKEN"},
	"metrics.port":                   {"METRICS_PORT"},
	"logging.level":                  {"LOG_LEVEL"},
	"kafka.brokers":                  {"KAFKA_BROKERS"},
	"kafka.topic":                    {"KAFKA_TOPIC"},
	"tracing.enabled":                {"OTEL_ENABLED"},
	"tracing.otlp_endpoint":          {"OTEL_EXPORTER_OTLP_ENDPOINT"},
	"tracing.service_name":           {"OTEL_SERVICE_NAME"},
	"quality.min_report_chars":       {"QUALITY_MIN_REPORT_CHARS"},
	"quality.min_summary_chars":      {"QUALITY_MIN_SUMMARY_CHARS"},
	"collector.requests_per_second":  {"COLLECTOR_REQUESTS_PER_SECOND"},
	"collector.timeout":              {"COLLECTOR_TIMEOUT"},
	"health.check_interval":          {"HEALTH_CHECK_INTERVAL"},
	"templates_path":                 {"TEMPLATES_PATH"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.backend", BackendHuggingFace)
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.huggingface.model", "meta-llama/Meta-Llama-3.1-8B-Instruct")
	v.SetDefault("llm.huggingface.fallback_model", "HuggingFaceH4/zephyr-7b-beta")
	v.SetDefault("llm.huggingface.base_url", "https://api-inference.huggingface.co/models/")
	v.SetDefault("llm.ollama.model", "gemma2:2b")
	v.SetDefault("llm.ollama.base_url", "http://localhost:11434")

	v.SetDefault("database.url", "sqlite:///./data/multiagent.db")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.idle_connections", 5)
	v.SetDefault("database.max_lifetime", 30*time.Minute)
	v.SetDefault("database.workers", 4)
	v.SetDefault("database.queue_size", 256)

	v.SetDefault("redis.task_ttl", 24*time.Hour)
	v.SetDefault("api.host", "localhost")
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.request_timeout", 5*time.Minute)
	v.SetDefault("metrics.port", 2112)
	v.SetDefault("logging.level", "info")
	v.SetDefault("kafka.topic", "task-events")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "multi-agent-ai-system")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")

	v.SetDefault("quality.min_report_chars", 120)
	v.SetDefault("quality.min_summary_chars", 40)
	v.SetDefault("collector.requests_per_second", 2.0)
	v.SetDefault("collector.timeout", 10*time.Second)
	v.SetDefault("health.check_interval", 30*time.Second)
}

// Load reads .env (best-effort), then the YAML file named by CONFIG_PATH
// (default config/agents.yaml, optional), then environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	return load(path, explicit)
}

// LoadFile reads the given YAML file with environment overrides. The file must exist.
func LoadFile(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, required bool) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	cfgPath := ""
	if path != "" {
		v.SetConfigFile(path)
		err := v.ReadInConfig()
		switch {
		case err == nil:
			cfgPath = path
		case !required && errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Path = cfgPath
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.LLM.Backend = strings.ToLower(strings.TrimSpace(cfg.LLM.Backend))
	cfg.Database.Enabled = databaseEnabled(v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	switch c.LLM.Backend {
	case BackendHuggingFace, BackendOllama:
	default:
		return fmt.Errorf("invalid LLM_BACKEND %q: want %s or %s", c.LLM.Backend, BackendHuggingFace, BackendOllama)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid API_PORT %d", c.API.Port)
	}
	if c.Quality.MinReportChars < 0 || c.Quality.MinSummaryChars < 0 {
		return errors.New("quality thresholds must not be negative")
	}
	return nil
}

// Addr is the API listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// databaseEnabled reads ENABLE_DATABASE, falling back to database.enabled in
// the file. An explicitly empty variable disables persistence.
func databaseEnabled(v *viper.Viper) bool {
	raw, set := os.LookupEnv("ENABLE_DATABASE")
	if !set {
		if !v.IsSet("database.enabled") {
			return true
		}
		raw = v.GetString("database.enabled")
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "0", "false", "no", "":
		return false
	default:
		return true
	}
}

// splitList accepts both a YAML list and a comma separated env value
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
