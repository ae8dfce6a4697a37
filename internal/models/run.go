package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus enumerates the lifecycle states of an evaluation run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Known reports whether the status is one of the recognised identifiers.
func (s RunStatus) Known() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status ends the run lifecycle.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle
// step. The lifecycle only moves forward: pending may advance to running or
// straight to a terminal state, running may only advance to a terminal
// state, and terminal states never change again.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case RunStatusPending:
		return next == RunStatusRunning || next.Terminal()
	case RunStatusRunning:
		return next.Terminal()
	case RunStatusCompleted, RunStatusFailed:
		return false
	default:
		return false
	}
}

// Run is a single execution of an evaluation suite against a model and
// system prompt configuration. ProjectID groups the test cases evaluated by
// the run and is not persisted; the runs table carries only the columns
// below.
type Run struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	ProjectID    string    `gorm:"-" json:"project_id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	LLMModel     string    `gorm:"size:128;not null" json:"llm_model"`
	SystemPrompt string    `gorm:"type:text;not null;default:''" json:"system_prompt"`
	Status       RunStatus `gorm:"size:32;not null;default:'pending'" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewRun builds a run with a fresh identity in the given status.
func NewRun(name, llmModel, systemPrompt string, status RunStatus) Run {
	return Run{
		ID:           uuid.NewString(),
		Name:         name,
		LLMModel:     llmModel,
		SystemPrompt: systemPrompt,
		Status:       status,
		CreatedAt:    time.Now().UTC(),
	}
}
