// SPDX-License-Identifier: Apache-2.0

// Package orchestrator turns a positive detection into a persisted workflow
// and kicks off its first step. Execution is asynchronous from the moment
// Submit returns.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finsight/orchestrator/internal/bus"
	"github.com/finsight/orchestrator/internal/catalog"
	"github.com/finsight/orchestrator/internal/detect"
	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/metrics"
	"github.com/finsight/orchestrator/internal/store"
)

type SubmitRequest struct {
	Message string
	OwnerID string
	// Context is an opaque payload threaded through to the workflow record;
	// the core never interprets it.
	Context json.RawMessage
	// TraceID, when set, becomes the workflow id. The HTTP layer passes the
	// request id here so a workflow is traceable back to its originating
	// request.
	TraceID string
}

// Handle is returned to the submitter immediately; the workflow keeps running
// after Submit returns.
type Handle struct {
	WorkflowID        string   `json:"workflow_id"`
	ParticipantAgents []string `json:"participant_agents"`
	EstimatedSeconds  int      `json:"estimated_seconds"`
}

type Deps struct {
	Store  *store.WorkflowStore
	Bus    *bus.Bus
	Logger *slog.Logger
}

type Orchestrator struct {
	store  *store.WorkflowStore
	bus    *bus.Bus
	logger *slog.Logger
}

func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:  deps.Store,
		bus:    deps.Bus,
		logger: logger,
	}
}

// Submit classifies the message and, when it is a workflow, persists the new
// record and emits WorkflowStarted plus the first AgentStarted. Two identical
// submissions create two independent workflows; there is no deduplication.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*Handle, error) {
	detection := detect.Detect(req.Message, req.Context)
	if detection == nil {
		return nil, domain.ErrNotWorkflow
	}

	workflowID := req.TraceID
	if workflowID == "" {
		workflowID = uuid.NewString()
	}

	steps := make([]domain.Step, 0, len(detection.ParticipantAgents))
	for _, agentName := range detection.ParticipantAgents {
		task, err := catalog.TaskDescription(agentName)
		if err != nil {
			return nil, fmt.Errorf("build steps: %w", err)
		}
		steps = append(steps, domain.Step{
			AgentName:       agentName,
			TaskDescription: task,
			Status:          domain.StepPending,
		})
	}

	now := time.Now().UTC()
	w := &domain.Workflow{
		ID:                workflowID,
		OwnerID:           req.OwnerID,
		OriginalMessage:   req.Message,
		Context:           req.Context,
		ParticipantAgents: detection.ParticipantAgents,
		Steps:             steps,
		Results:           []domain.AgentResult{},
		Status:            domain.WorkflowPending,
		StartedAt:         now,
		LastUpdatedAt:     now,
	}

	if err := o.store.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("persist workflow %s: %w", workflowID, err)
	}
	metrics.IncWorkflowStatus(domain.WorkflowPending)

	o.bus.Publish(domain.NewWorkflowStarted(w, detection.EstimatedSeconds))

	// Mark step 0 processing before announcing it, so any consumer that
	// reads the store after seeing AgentStarted finds consistent state.
	startedAt := time.Now().UTC()
	w.Steps[0].Status = domain.StepProcessing
	w.Steps[0].StartedAt = &startedAt
	w.Status = domain.WorkflowRunning
	w.LastUpdatedAt = startedAt

	if err := o.store.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("persist workflow %s: %w", workflowID, err)
	}
	metrics.IncWorkflowStatus(domain.WorkflowRunning)

	o.bus.Publish(domain.NewAgentStarted(w, 0))

	o.logger.Info("workflow started",
		"workflow_id", workflowID,
		"owner_id", req.OwnerID,
		"agents", detection.ParticipantAgents,
		"estimated_seconds", detection.EstimatedSeconds,
	)

	return &Handle{
		WorkflowID:        workflowID,
		ParticipantAgents: detection.ParticipantAgents,
		EstimatedSeconds:  detection.EstimatedSeconds,
	}, nil
}
