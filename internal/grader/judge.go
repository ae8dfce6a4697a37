package grader

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jantenpas/llm-eval-studio/pkg/llm"
)

const judgePromptTemplate = `You are evaluating an AI assistant's response against an expected output.

<expected>%s</expected>
<actual>%s</actual>

Score how well the actual response satisfies the intent of the expected output.
- 1.0 = correct and complete
- 0.5 = partially correct
- 0.0 = incorrect or irrelevant

Respond in this exact format:
<reasoning>one sentence explanation</reasoning>
<score>decimal between 0.0 and 1.0</score>`

// fallbackReasoning substitutes for a judge reply with no reasoning tag.
const fallbackReasoning = "Could not parse reasoning."

var (
	reasoningPattern = regexp.MustCompile(`(?s)<reasoning>(.*?)</reasoning>`)
	scorePattern     = regexp.MustCompile(`(?s)<score>(.*?)</score>`)
)

// JudgeWithModel asks the model to grade the pair and parses its tagged
// reply. The judge call carries no system prompt and uses the client's
// default token limit. A failed invocation is the only error path; an
// unparseable reply degrades to score 0.0 with fallback reasoning.
func JudgeWithModel(ctx context.Context, judge llm.Invoker, actual, expected string) (Score, error) {
	prompt := fmt.Sprintf(judgePromptTemplate, expected, actual)

	completion, err := judge.Invoke(ctx, llm.Invocation{Prompt: prompt})
	if err != nil {
		return Score{}, fmt.Errorf("judge invocation: %w", err)
	}

	return parseJudgeReply(completion.Text), nil
}

// parseJudgeReply tolerates malformed replies: a missing or non-numeric
// score becomes 0.0 and any out-of-range value is clamped into [0, 1].
func parseJudgeReply(reply string) Score {
	reasoning := fallbackReasoning
	if match := reasoningPattern.FindStringSubmatch(reply); match != nil {
		reasoning = strings.TrimSpace(match[1])
	}

	score := 0.0
	if match := scorePattern.FindStringSubmatch(reply); match != nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(match[1]), 64); err == nil {
			score = clamp(parsed)
		}
	}

	return Score{Value: score, Reasoning: reasoning}
}

func clamp(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(0, math.Min(1, score))
}
