package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AnthropicConfig defines configuration options for the Anthropic invoker.
// ClientOptions is appended to the generated options and lets tests point
// the client at a local server.
type AnthropicConfig struct {
	APIKey        string
	Model         string
	MaxTokens     int
	ClientOptions []option.RequestOption
	Logger        zerolog.Logger
}

// AnthropicInvoker implements Invoker against the Anthropic Messages API.
type AnthropicInvoker struct {
	client anthropic.Client
	cfg    AnthropicConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewAnthropicInvoker builds a new invoker using the provided configuration.
func NewAnthropicInvoker(cfg AnthropicConfig) (*AnthropicInvoker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	tracer := otel.Tracer("github.com/jantenpas/llm-eval-studio/pkg/llm/anthropic")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	opts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, cfg.ClientOptions...)

	return &AnthropicInvoker{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Invoke sends the prompt to the Messages API and returns the text of the
// first content block plus the measured round-trip latency.
func (a *AnthropicInvoker) Invoke(parent context.Context, inv Invocation) (Completion, error) {
	if strings.TrimSpace(inv.Prompt) == "" {
		return Completion{}, ErrEmptyPrompt
	}

	maxTokens := inv.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.cfg.MaxTokens
	}

	ctx, span := a.tracer.Start(parent, "anthropic.invoke", trace.WithAttributes(
		attribute.String("model", a.cfg.Model),
	))
	defer span.End()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.cfg.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(inv.Prompt)),
		},
	}
	if inv.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: inv.SystemPrompt,
			Type: constant.ValueOf[constant.Text](),
		}}
	}

	start := time.Now()
	message, err := a.client.Messages.New(ctx, params)
	duration := time.Since(start)
	invokeDuration.WithLabelValues("anthropic", a.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		invokeFailures.WithLabelValues("anthropic", a.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Completion{}, fmt.Errorf("anthropic invoke: %w", err)
	}

	if len(message.Content) == 0 {
		invokeFailures.WithLabelValues("anthropic", a.cfg.Model).Inc()
		span.RecordError(ErrEmptyResponse)
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return Completion{}, ErrEmptyResponse
	}

	block, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnexpectedContent, message.Content[0].Type)
		invokeFailures.WithLabelValues("anthropic", a.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Completion{}, err
	}

	a.logger.Debug().
		Str("model", a.cfg.Model).
		Int64("latency_ms", roundMillis(duration)).
		Msg("anthropic invocation completed")

	return Completion{Text: block.Text, LatencyMs: roundMillis(duration)}, nil
}
