package dto

import (
	"time"

	"github.com/jantenpas/llm-eval-studio/internal/models"
)

// RunEvent announces a run reaching a terminal status. It is broadcast to
// SSE subscribers and across nodes via the message broker.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Total      int       `json:"total"`
	Passed     int       `json:"passed"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewRunEvent builds the terminal-status announcement for a run.
func NewRunEvent(runID, name string, status models.RunStatus, total, passed int) RunEvent {
	return RunEvent{
		RunID:      runID,
		Name:       name,
		Status:     string(status),
		Total:      total,
		Passed:     passed,
		OccurredAt: time.Now().UTC(),
	}
}
