// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/finsight/orchestrator/internal/domain"
)

const WorkflowNamespace = "workflows"

// WorkflowStore is the typed wrapper over the KV contract for workflow
// records.
type WorkflowStore struct {
	kv Store
}

func NewWorkflowStore(kv Store) *WorkflowStore {
	return &WorkflowStore{kv: kv}
}

func (s *WorkflowStore) Load(ctx context.Context, workflowID string) (*domain.Workflow, error) {
	raw, err := s.kv.Get(ctx, WorkflowNamespace, workflowID)
	if err != nil {
		return nil, err
	}

	var w domain.Workflow
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", workflowID, err)
	}
	return &w, nil
}

func (s *WorkflowStore) Save(ctx context.Context, w *domain.Workflow) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode workflow %s: %w", w.ID, err)
	}
	return s.kv.Set(ctx, WorkflowNamespace, w.ID, raw)
}

func (s *WorkflowStore) Delete(ctx context.Context, workflowID string) error {
	return s.kv.Delete(ctx, WorkflowNamespace, workflowID)
}
