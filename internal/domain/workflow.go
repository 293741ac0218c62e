// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"encoding/json"
	"time"
)

type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepError      StepStatus = "error"
)

// Step is one agent's unit of work inside a workflow.
type Step struct {
	AgentName       string     `json:"agent_name"`
	TaskDescription string     `json:"task_description"`
	Status          StepStatus `json:"status"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// AgentResult records the outcome of one step. Error is set when the provider
// chain was exhausted for the step; the entry is still appended so results stay
// index-aligned with steps.
type AgentResult struct {
	AgentName       string    `json:"agent_name"`
	TaskDescription string    `json:"task_description"`
	ResultText      string    `json:"result_text"`
	Error           string    `json:"error,omitempty"`
	CompletedAt     time.Time `json:"completed_at"`
	ProviderUsed    string    `json:"provider_used,omitempty"`
	ModelUsed       string    `json:"model_used,omitempty"`
}

// Workflow is the single shared mutable record. ParticipantAgents and Steps are
// fixed at creation; only Results, CurrentStep, Status and per-step fields
// change, and only the executor writes them.
type Workflow struct {
	ID                string          `json:"id"`
	OwnerID           string          `json:"owner_id"`
	OriginalMessage   string          `json:"original_message"`
	Context           json.RawMessage `json:"context,omitempty"`
	ParticipantAgents []string        `json:"participant_agents"`
	Steps             []Step          `json:"steps"`
	Results           []AgentResult   `json:"results"`
	CurrentStep       int             `json:"current_step"`
	Status            WorkflowStatus  `json:"status"`
	StartedAt         time.Time       `json:"started_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	LastUpdatedAt     time.Time       `json:"last_updated_at"`
}

func (w *Workflow) Terminal() bool {
	return w.Status == WorkflowCompleted || w.Status == WorkflowFailed
}
