// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventWorkflowStarted   EventType = "workflow_started"
	EventAgentStarted      EventType = "agent_started"
	EventAgentProgress     EventType = "agent_progress"
	EventAgentCompleted    EventType = "agent_completed"
	EventWorkflowCompleted EventType = "workflow_completed"
	EventWorkflowError     EventType = "workflow_error"

	// EventHeartbeat is synthesized by push adapters to detect dead
	// connections. It never crosses the bus and carries no payload.
	EventHeartbeat EventType = "heartbeat"
)

// Event is the one shape every delivery adapter reads. Failure states travel as
// payload data, never as in-process faults, so all adapters observe the same
// outcome.
type Event struct {
	Type       EventType       `json:"type"`
	WorkflowID string          `json:"workflow_id"`
	OwnerID    string          `json:"owner_id,omitempty"`
	Agent      string          `json:"agent,omitempty"`
	StepIndex  int             `json:"step_index"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (e Event) TerminalForWorkflow() bool {
	return e.Type == EventWorkflowCompleted || e.Type == EventWorkflowError
}

type WorkflowStartedPayload struct {
	ParticipantAgents []string `json:"participant_agents"`
	EstimatedSeconds  int      `json:"estimated_seconds"`
}

type AgentProgressPayload struct {
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
}

type AgentCompletedPayload struct {
	Result *AgentResult `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

type WorkflowCompletedPayload struct {
	Results []AgentResult `json:"results"`
}

type WorkflowErrorPayload struct {
	Reason string `json:"reason"`
}

func NewWorkflowStarted(w *Workflow, estimatedSeconds int) Event {
	payload, _ := json.Marshal(WorkflowStartedPayload{
		ParticipantAgents: w.ParticipantAgents,
		EstimatedSeconds:  estimatedSeconds,
	})
	return Event{
		Type:       EventWorkflowStarted,
		WorkflowID: w.ID,
		OwnerID:    w.OwnerID,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}
}

func NewAgentStarted(w *Workflow, stepIndex int) Event {
	return Event{
		Type:       EventAgentStarted,
		WorkflowID: w.ID,
		OwnerID:    w.OwnerID,
		Agent:      w.Steps[stepIndex].AgentName,
		StepIndex:  stepIndex,
		Timestamp:  time.Now().UTC(),
	}
}

func NewAgentProgress(w *Workflow, stepIndex, percentage int, message string) Event {
	payload, _ := json.Marshal(AgentProgressPayload{
		Percentage: percentage,
		Message:    message,
	})
	return Event{
		Type:       EventAgentProgress,
		WorkflowID: w.ID,
		OwnerID:    w.OwnerID,
		Agent:      w.Steps[stepIndex].AgentName,
		StepIndex:  stepIndex,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}
}

func NewAgentCompleted(w *Workflow, stepIndex int, result AgentResult) Event {
	p := AgentCompletedPayload{Error: result.Error}
	if result.Error == "" {
		p.Result = &result
	}
	payload, _ := json.Marshal(p)
	return Event{
		Type:       EventAgentCompleted,
		WorkflowID: w.ID,
		OwnerID:    w.OwnerID,
		Agent:      w.Steps[stepIndex].AgentName,
		StepIndex:  stepIndex,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}
}

func NewWorkflowCompleted(w *Workflow) Event {
	payload, _ := json.Marshal(WorkflowCompletedPayload{Results: w.Results})
	return Event{
		Type:       EventWorkflowCompleted,
		WorkflowID: w.ID,
		OwnerID:    w.OwnerID,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}
}

func NewWorkflowError(workflowID, ownerID, reason string) Event {
	payload, _ := json.Marshal(WorkflowErrorPayload{Reason: reason})
	return Event{
		Type:       EventWorkflowError,
		WorkflowID: workflowID,
		OwnerID:    ownerID,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}
}

func NewHeartbeat() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now().UTC(),
	}
}
