package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIConfig defines configuration options for the OpenAI invoker.
// BaseURL overrides the API endpoint, which tests use to point the client
// at a local server.
type OpenAIConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string
	Logger    zerolog.Logger
}

// OpenAIInvoker implements Invoker against the OpenAI chat completion API.
type OpenAIInvoker struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIInvoker builds a new invoker using the provided configuration.
func NewOpenAIInvoker(cfg OpenAIConfig) (*OpenAIInvoker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	tracer := otel.Tracer("github.com/jantenpas/llm-eval-studio/pkg/llm/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIInvoker{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Invoke sends the prompt as a chat completion and returns the content of
// the first choice plus the measured round-trip latency.
func (o *OpenAIInvoker) Invoke(parent context.Context, inv Invocation) (Completion, error) {
	if strings.TrimSpace(inv.Prompt) == "" {
		return Completion{}, ErrEmptyPrompt
	}

	maxTokens := inv.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.cfg.MaxTokens
	}

	ctx, span := o.tracer.Start(parent, "openai.invoke", trace.WithAttributes(
		attribute.String("model", o.cfg.Model),
	))
	defer span.End()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if inv.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: inv.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: inv.Prompt,
	})

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.cfg.Model,
		MaxTokens: maxTokens,
		Messages:  messages,
	})
	duration := time.Since(start)
	invokeDuration.WithLabelValues("openai", o.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		invokeFailures.WithLabelValues("openai", o.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Completion{}, fmt.Errorf("openai invoke: %w", err)
	}

	if len(resp.Choices) == 0 {
		invokeFailures.WithLabelValues("openai", o.cfg.Model).Inc()
		span.RecordError(ErrEmptyResponse)
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return Completion{}, ErrEmptyResponse
	}

	message := resp.Choices[0].Message
	if message.Content == "" {
		err := ErrEmptyResponse
		if len(message.ToolCalls) > 0 {
			err = fmt.Errorf("%w: tool_calls", ErrUnexpectedContent)
		}
		invokeFailures.WithLabelValues("openai", o.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Completion{}, err
	}

	o.logger.Debug().
		Str("model", o.cfg.Model).
		Int64("latency_ms", roundMillis(duration)).
		Msg("openai invocation completed")

	return Completion{Text: message.Content, LatencyMs: roundMillis(duration)}, nil
}
