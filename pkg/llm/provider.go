package llm

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Supported model backends.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ProviderConfig selects and configures the invoker backend.
type ProviderConfig struct {
	Provider  string
	APIKey    string
	Model     string
	MaxTokens int
	Logger    zerolog.Logger
}

// NewInvoker constructs the invoker for the configured provider. An empty
// provider selects Anthropic.
func NewInvoker(cfg ProviderConfig) (Invoker, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderAnthropic, "":
		return NewAnthropicInvoker(AnthropicConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Logger:    cfg.Logger,
		})
	case ProviderOpenAI:
		return NewOpenAIInvoker(OpenAIConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Logger:    cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
