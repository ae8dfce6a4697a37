package grader

import (
	"fmt"
	"strings"
)

// ExactMatch scores 1.0 when actual and expected are equal after trimming
// surrounding whitespace and lowercasing, and 0.0 otherwise. The reasoning
// echoes the untrimmed texts so a mismatch is visible verbatim.
func ExactMatch(actual, expected string) Score {
	if strings.ToLower(strings.TrimSpace(actual)) == strings.ToLower(strings.TrimSpace(expected)) {
		return Score{Value: 1, Reasoning: "Exact match."}
	}

	return Score{
		Value:     0,
		Reasoning: fmt.Sprintf("Expected '%s', got '%s'.", expected, actual),
	}
}
