// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"

	"github.com/finsight/orchestrator/internal/bus"
	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/orchestrator"
)

// WorkflowSubmitter is the orchestrator surface the router needs.
type WorkflowSubmitter interface {
	Submit(ctx context.Context, req orchestrator.SubmitRequest) (*orchestrator.Handle, error)
}

// WorkflowReader serves poll and detail reads from the state store.
type WorkflowReader interface {
	Load(ctx context.Context, workflowID string) (*domain.Workflow, error)
}

// EventSubscriber is the bus surface the push adapters need.
type EventSubscriber interface {
	Subscribe(topic string, buffer int) *bus.Subscription
	Unsubscribe(sub *bus.Subscription)
}
