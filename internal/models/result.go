package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrScoreOutOfRange rejects a result whose score lies outside [0, 1].
var ErrScoreOutOfRange = errors.New("score must lie in [0, 1]")

// ErrNegativeLatency rejects a result with a negative measured latency.
var ErrNegativeLatency = errors.New("latency must not be negative")

// Result is the graded outcome of one test case within one run. The test
// case input and expected output are denormalized into the row so a run
// detail never needs the in-memory suite again. TestCaseID correlates the
// result back to its case inside snapshot files and is not a column.
type Result struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	RunID            string    `gorm:"size:36;not null;index" json:"run_id"`
	TestCaseID       string    `gorm:"-" json:"test_case_id"`
	TestCaseInput    string    `gorm:"type:text;not null" json:"-"`
	TestCaseExpected string    `gorm:"type:text;not null" json:"-"`
	ActualOutput     string    `gorm:"type:text;not null" json:"actual_output"`
	Score            float64   `gorm:"not null" json:"score"`
	Reasoning        string    `gorm:"type:text;not null" json:"reasoning"`
	LatencyMs        int64     `gorm:"not null" json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`

	Run Run `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// NewResult validates and builds a graded result. Scores outside [0, 1] are
// rejected rather than clamped; graders clamp before constructing a result.
func NewResult(runID, testCaseID, actualOutput string, score float64, reasoning string, latencyMs int64) (Result, error) {
	if score < 0 || score > 1 {
		return Result{}, fmt.Errorf("%w: got %v", ErrScoreOutOfRange, score)
	}
	if latencyMs < 0 {
		return Result{}, fmt.Errorf("%w: got %dms", ErrNegativeLatency, latencyMs)
	}

	return Result{
		ID:           uuid.NewString(),
		RunID:        runID,
		TestCaseID:   testCaseID,
		ActualOutput: actualOutput,
		Score:        score,
		Reasoning:    reasoning,
		LatencyMs:    latencyMs,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
