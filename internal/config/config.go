package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the evaluation service.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	RunCacheTTL     time.Duration
	LLMProvider     string
	LLMModel        string
	MaxOutputTokens int
	AnthropicAPIKey string
	OpenAIAPIKey    string
	ResultsDir      string
	EvalWorkers     int
	EvalQueueSize   int
	EventSubject    string
	EventKeepAlive  time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and an
// optional .env file. Variables use the EVAL_ prefix; the provider API keys
// are also read from their unprefixed SDK names.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EVAL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = v.BindEnv("anthropic_api_key", "EVAL_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("openai_api_key", "EVAL_OPENAI_API_KEY", "OPENAI_API_KEY")

	v.SetDefault("app.name", "LLM Eval Studio")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.url", "eval_studio.db")
	v.SetDefault("runs.cache_ttl", "30s")
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "claude-sonnet-4-6")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("results.dir", "results")
	v.SetDefault("eval.workers", 4)
	v.SetDefault("eval.queue_size", 64)
	v.SetDefault("events.subject", "evalstudio.runs")
	v.SetDefault("events.keepalive", "30s")

	cacheTTL, err := time.ParseDuration(v.GetString("runs.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid run cache ttl: %w", err)
	}

	keepAlive, err := time.ParseDuration(v.GetString("events.keepalive"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid event keepalive interval: %w", err)
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		RunCacheTTL:     cacheTTL,
		LLMProvider:     strings.ToLower(v.GetString("llm.provider")),
		LLMModel:        v.GetString("llm.model"),
		MaxOutputTokens: v.GetInt("llm.max_tokens"),
		AnthropicAPIKey: v.GetString("anthropic_api_key"),
		OpenAIAPIKey:    v.GetString("openai_api_key"),
		ResultsDir:      v.GetString("results.dir"),
		EvalWorkers:     v.GetInt("eval.workers"),
		EvalQueueSize:   v.GetInt("eval.queue_size"),
		EventSubject:    v.GetString("events.subject"),
		EventKeepAlive:  keepAlive,
	}

	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 1024
	}

	if cfg.EvalWorkers <= 0 {
		cfg.EvalWorkers = 4
	}

	if cfg.EvalQueueSize <= 0 {
		cfg.EvalQueueSize = 64
	}

	return cfg, nil
}
