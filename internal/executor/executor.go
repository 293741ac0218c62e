// SPDX-License-Identifier: Apache-2.0

// Package executor drives the per-step state machine. It consumes
// AgentStarted events from the bus, runs the provider chain, persists the
// outcome, and re-enters itself by emitting the next AgentStarted. That
// self-triggering loop is what keeps exactly one step in flight per workflow:
// step N+1 is only announced after step N's result is durably recorded.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/finsight/orchestrator/internal/bus"
	"github.com/finsight/orchestrator/internal/catalog"
	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/metrics"
	"github.com/finsight/orchestrator/internal/provider"
	"github.com/finsight/orchestrator/internal/store"
)

// Completer is the provider chain surface the executor needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (provider.Completion, error)
}

type Deps struct {
	Store  *store.WorkflowStore
	Bus    *bus.Bus
	Chain  Completer
	Logger *slog.Logger

	// FirehoseBuffer bounds the executor's bus subscription. The default is
	// generous; an overflow here would stall workflows, not just drop UX
	// frames.
	FirehoseBuffer int
}

type Executor struct {
	store  *store.WorkflowStore
	bus    *bus.Bus
	chain  Completer
	logger *slog.Logger
	buffer int
}

func New(deps Deps) *Executor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	buffer := deps.FirehoseBuffer
	if buffer <= 0 {
		buffer = 1024
	}

	return &Executor{
		store:  deps.Store,
		bus:    deps.Bus,
		chain:  deps.Chain,
		logger: logger,
		buffer: buffer,
	}
}

// Run consumes the firehose until ctx is canceled or the bus closes. Each
// AgentStarted is processed on its own goroutine; workflows are already
// serialized internally, so this only parallelizes across workflows.
func (e *Executor) Run(ctx context.Context) {
	sub := e.bus.Subscribe(bus.TopicFirehose, e.buffer)
	defer e.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if ev.Type != domain.EventAgentStarted {
				continue
			}
			go e.process(ctx, ev)
		}
	}
}

func (e *Executor) process(ctx context.Context, ev domain.Event) {
	w, err := e.store.Load(ctx, ev.WorkflowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("workflow not found", "workflow_id", ev.WorkflowID)
			e.bus.Publish(domain.NewWorkflowError(ev.WorkflowID, ev.OwnerID, "not_found"))
			return
		}
		e.logger.Error("load workflow failed", "workflow_id", ev.WorkflowID, "error", err)
		e.bus.Publish(domain.NewWorkflowError(ev.WorkflowID, ev.OwnerID, "load_failed"))
		return
	}

	idx := ev.StepIndex
	if idx < 0 || idx >= len(w.Steps) {
		e.logger.Error("step index out of range",
			"workflow_id", w.ID,
			"step_index", idx,
			"steps", len(w.Steps),
		)
		return
	}
	step := w.Steps[idx]

	e.publishProgress(w, idx)

	started := time.Now()
	result := e.runStep(ctx, w, idx)
	metrics.ObserveStepDuration(time.Since(started))

	now := time.Now().UTC()
	result.CompletedAt = now

	w.Results = append(w.Results, result)
	w.CurrentStep = idx + 1
	w.Steps[idx].CompletedAt = &now
	if result.Error != "" {
		w.Steps[idx].Status = domain.StepError
		metrics.IncStepStatus(domain.StepError)
	} else {
		w.Steps[idx].Status = domain.StepCompleted
		metrics.IncStepStatus(domain.StepCompleted)
	}

	lastStep := idx == len(w.Steps)-1
	if lastStep {
		w.Status = domain.WorkflowCompleted
		w.CompletedAt = &now
	} else {
		nextStart := now
		w.Steps[idx+1].Status = domain.StepProcessing
		w.Steps[idx+1].StartedAt = &nextStart
	}
	w.LastUpdatedAt = now

	// Persist before announcing: consumers reading the store after the
	// events below must see the recorded outcome, and the next step must
	// never start ahead of this write.
	if err := e.store.Save(ctx, w); err != nil {
		e.logger.Error("persist step outcome failed",
			"workflow_id", w.ID,
			"step_index", idx,
			"error", err,
		)
		e.bus.Publish(domain.NewWorkflowError(w.ID, w.OwnerID, "persist_failed"))
		return
	}

	e.bus.Publish(domain.NewAgentCompleted(w, idx, result))

	if lastStep {
		metrics.IncWorkflowStatus(domain.WorkflowCompleted)
		e.bus.Publish(domain.NewWorkflowCompleted(w))
		e.logger.Info("workflow completed",
			"workflow_id", w.ID,
			"owner_id", w.OwnerID,
			"steps", len(w.Steps),
		)
		return
	}

	e.bus.Publish(domain.NewAgentStarted(w, idx+1))

	e.logger.Info("step completed",
		"workflow_id", w.ID,
		"step_index", idx,
		"agent", step.AgentName,
		"failed", result.Error != "",
	)
}

// runStep calls the provider chain for one step. Chain exhaustion is recorded
// on the result, not returned: a failed step does not halt the workflow.
func (e *Executor) runStep(ctx context.Context, w *domain.Workflow, idx int) domain.AgentResult {
	step := w.Steps[idx]
	result := domain.AgentResult{
		AgentName:       step.AgentName,
		TaskDescription: step.TaskDescription,
	}

	systemPrompt, err := catalog.SystemPrompt(step.AgentName)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	completion, err := e.chain.Complete(ctx, systemPrompt, buildUserMessage(w, idx))
	if err != nil {
		e.logger.Warn("provider chain exhausted",
			"workflow_id", w.ID,
			"step_index", idx,
			"agent", step.AgentName,
			"error", err,
		)
		result.Error = err.Error()
		return result
	}

	result.ResultText = completion.Text
	result.ProviderUsed = completion.Provider
	result.ModelUsed = completion.Model
	return result
}

// buildUserMessage threads earlier agents' output into the prompt: sequential
// context accumulation is how later agents see prior results.
func buildUserMessage(w *domain.Workflow, idx int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Task: %s\n\n", w.Steps[idx].TaskDescription)
	fmt.Fprintf(&b, "User request: %s\n", w.OriginalMessage)

	if len(w.Results) > 0 {
		b.WriteString("\nFindings from earlier agents:\n")
		for _, r := range w.Results {
			if r.Error != "" {
				fmt.Fprintf(&b, "- %s: (no result: %s)\n", r.AgentName, r.Error)
				continue
			}
			fmt.Fprintf(&b, "- %s: %s\n", r.AgentName, r.ResultText)
		}
	}

	return b.String()
}

// publishProgress emits the advisory AgentProgress frames. They are pure UX;
// nothing downstream may depend on them for correctness.
func (e *Executor) publishProgress(w *domain.Workflow, idx int) {
	total := len(w.Steps)
	agent := w.Steps[idx].AgentName

	e.bus.Publish(domain.NewAgentProgress(w, idx,
		idx*100/total,
		fmt.Sprintf("%s started", agent),
	))
	e.bus.Publish(domain.NewAgentProgress(w, idx,
		(idx*100+50)/total,
		fmt.Sprintf("%s is working on: %s", agent, w.Steps[idx].TaskDescription),
	))
}
