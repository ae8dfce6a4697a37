package dto

import (
	"time"

	"github.com/jantenpas/llm-eval-studio/internal/models"
	"github.com/jantenpas/llm-eval-studio/internal/repository"
)

// TestCaseSpec is one test case submitted with a run creation request.
type TestCaseSpec struct {
	Input          string   `json:"input" validate:"required"`
	ExpectedOutput string   `json:"expected_output" validate:"required"`
	ScoringMethod  string   `json:"scoring_method,omitempty" validate:"omitempty,oneof=exact_match llm_judge fuzzy"`
	Tags           []string `json:"tags,omitempty" validate:"omitempty,dive,required"`
}

// RunCreateRequest represents the payload for creating an evaluation run.
type RunCreateRequest struct {
	Name         string         `json:"name" validate:"required,min=1"`
	TestCases    []TestCaseSpec `json:"test_cases" validate:"required,min=1,dive"`
	SystemPrompt string         `json:"system_prompt"`
}

// RunCreatedResponse acknowledges an accepted run.
type RunCreatedResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// RunSummaryResponse lists one run with aggregates over its results.
// AvgScore is omitted entirely for runs without results.
type RunSummaryResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	ResultCount int64     `json:"result_count"`
	AvgScore    *float64  `json:"avg_score,omitempty"`
}

// ResultResponse is one graded result inside a run detail payload.
type ResultResponse struct {
	ID               string  `json:"id"`
	TestCaseInput    string  `json:"test_case_input"`
	TestCaseExpected string  `json:"test_case_expected"`
	ActualOutput     string  `json:"actual_output"`
	Score            float64 `json:"score"`
	Reasoning        string  `json:"reasoning"`
	LatencyMs        int64   `json:"latency_ms"`
}

// RunDetailResponse is a run plus its results in insertion order and the
// aggregates recomputed from them. The averages are omitted, not zero, when
// the run has no results.
type RunDetailResponse struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	LLMModel     string           `json:"llm_model"`
	Status       string           `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	Results      []ResultResponse `json:"results"`
	Total        int              `json:"total"`
	Passed       int              `json:"passed"`
	AvgScore     *float64         `json:"avg_score,omitempty"`
	AvgLatencyMs *float64         `json:"avg_latency_ms,omitempty"`
}

// NewRunSummaryResponse converts an aggregate row into its API shape.
func NewRunSummaryResponse(row repository.RunListRow) RunSummaryResponse {
	return RunSummaryResponse{
		ID:          row.ID,
		Name:        row.Name,
		Status:      string(row.Status),
		CreatedAt:   row.CreatedAt,
		ResultCount: row.ResultCount,
		AvgScore:    row.AvgScore,
	}
}

// NewRunSummaryResponseSlice converts aggregate rows preserving order.
func NewRunSummaryResponseSlice(rows []repository.RunListRow) []RunSummaryResponse {
	responses := make([]RunSummaryResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, NewRunSummaryResponse(row))
	}
	return responses
}

// NewResultResponse converts a result row into its API shape.
func NewResultResponse(result models.Result) ResultResponse {
	return ResultResponse{
		ID:               result.ID,
		TestCaseInput:    result.TestCaseInput,
		TestCaseExpected: result.TestCaseExpected,
		ActualOutput:     result.ActualOutput,
		Score:            result.Score,
		Reasoning:        result.Reasoning,
		LatencyMs:        result.LatencyMs,
	}
}

// NewRunDetailResponse builds the detail payload, recomputing total, passed
// and averages from the stored results. passThreshold decides which scores
// count as passing.
func NewRunDetailResponse(run models.Run, results []models.Result, passThreshold float64) RunDetailResponse {
	response := RunDetailResponse{
		ID:        run.ID,
		Name:      run.Name,
		LLMModel:  run.LLMModel,
		Status:    string(run.Status),
		CreatedAt: run.CreatedAt,
		Results:   make([]ResultResponse, 0, len(results)),
		Total:     len(results),
	}

	var scoreSum float64
	var latencySum int64
	for _, result := range results {
		response.Results = append(response.Results, NewResultResponse(result))
		if result.Score >= passThreshold {
			response.Passed++
		}
		scoreSum += result.Score
		latencySum += result.LatencyMs
	}

	if len(results) > 0 {
		avgScore := scoreSum / float64(len(results))
		avgLatency := float64(latencySum) / float64(len(results))
		response.AvgScore = &avgScore
		response.AvgLatencyMs = &avgLatency
	}

	return response
}
