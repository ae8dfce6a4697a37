// Package grader scores model outputs against expected outputs. Two graders
// exist today: a normalized string comparison and a model-judged rubric.
package grader

import (
	"context"
	"fmt"

	"github.com/jantenpas/llm-eval-studio/internal/models"
	"github.com/jantenpas/llm-eval-studio/pkg/llm"
)

// Score is a graded verdict: a value in [0, 1] plus a short human-readable
// justification.
type Score struct {
	Value     float64
	Reasoning string
}

// UnsupportedMethodError reports a scoring method the data model recognises
// but no grader implements yet.
type UnsupportedMethodError struct {
	Method models.ScoringMethod
}

func (e UnsupportedMethodError) Error() string {
	return fmt.Sprintf("scoring method %q is not yet implemented", string(e.Method))
}

// Grade dispatches the (actual, expected) pair to the grader selected by the
// scoring method. Fuzzy matching is declared but has no grader, so it fails
// with UnsupportedMethodError, as does anything unrecognised.
func Grade(ctx context.Context, judge llm.Invoker, method models.ScoringMethod, actual, expected string) (Score, error) {
	switch method {
	case models.ScoringMethodExactMatch:
		return ExactMatch(actual, expected), nil
	case models.ScoringMethodLLMJudge:
		return JudgeWithModel(ctx, judge, actual, expected)
	default:
		return Score{}, UnsupportedMethodError{Method: method}
	}
}
