package models

import "time"

// ScoringMethod identifies how the actual output of a test case is graded.
type ScoringMethod string

const (
	ScoringMethodExactMatch ScoringMethod = "exact_match"
	ScoringMethodLLMJudge   ScoringMethod = "llm_judge"
	ScoringMethodFuzzy      ScoringMethod = "fuzzy"
)

// DefaultScoringMethod applies when a test case does not name a method.
const DefaultScoringMethod = ScoringMethodLLMJudge

// Known reports whether the method is one of the recognised identifiers.
func (m ScoringMethod) Known() bool {
	switch m {
	case ScoringMethodExactMatch, ScoringMethodLLMJudge, ScoringMethodFuzzy:
		return true
	default:
		return false
	}
}

// TestCase is one (input, expected output, scoring method) triple to
// evaluate. Test cases exist only in memory for the duration of a run and
// are never stored as rows of their own; result rows carry denormalized
// copies of their text instead.
type TestCase struct {
	ID             string        `json:"id"`
	ProjectID      string        `json:"project_id"`
	Input          string        `json:"input"`
	ExpectedOutput string        `json:"expected_output"`
	ScoringMethod  ScoringMethod `json:"scoring_method"`
	Tags           []string      `json:"tags"`
	CreatedAt      time.Time     `json:"created_at"`
}
