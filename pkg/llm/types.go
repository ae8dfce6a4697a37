package llm

import (
	"context"
	"errors"
	"time"
)

// DefaultModel is the model identifier used when none is configured.
const DefaultModel = "claude-sonnet-4-6"

// DefaultMaxTokens bounds generation when an invocation does not set one.
const DefaultMaxTokens = 1024

// ErrEmptyPrompt reports an invocation carrying no prompt text.
var ErrEmptyPrompt = errors.New("prompt must not be empty")

// ErrEmptyResponse reports a provider reply with an empty content list.
var ErrEmptyResponse = errors.New("model returned an empty content list")

// ErrUnexpectedContent reports a provider reply whose first content block is
// not plain text.
var ErrUnexpectedContent = errors.New("unexpected content block type")

// Invocation is a single prompt sent to a hosted model. SystemPrompt is
// optional; when empty the provider call omits the system parameter entirely
// instead of sending an empty string. MaxTokens falls back to the client
// default when zero.
type Invocation struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
}

// Completion carries the generated text together with the wall-clock latency
// of the remote call, rounded to the nearest millisecond.
type Completion struct {
	Text      string
	LatencyMs int64
}

// Invoker issues a single blocking call against a hosted model.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (Completion, error)
}

func roundMillis(d time.Duration) int64 {
	return d.Round(time.Millisecond).Milliseconds()
}
