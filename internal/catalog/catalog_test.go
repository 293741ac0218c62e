// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"errors"
	"testing"

	"github.com/finsight/orchestrator/internal/domain"
)

func TestLookupKnownAgents(t *testing.T) {
	for _, name := range []string{"analyst", "riskManager", "advisor", "planner"} {
		a, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", name, err)
		}
		if a.TaskDescription == "" {
			t.Fatalf("agent %s has no task description", name)
		}
		if a.SystemPrompt == "" {
			t.Fatalf("agent %s has no system prompt", name)
		}
		if a.EstimatedSeconds <= 0 {
			t.Fatalf("agent %s has no duration estimate", name)
		}
	}
}

func TestLookupUnknownAgent(t *testing.T) {
	_, err := Lookup("astrologer")
	if !errors.Is(err, domain.ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestEstimatedSeconds(t *testing.T) {
	got := EstimatedSeconds([]string{"analyst", "riskManager", "advisor"})
	if got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}

	if EstimatedSeconds([]string{"nobody"}) != 0 {
		t.Fatal("unknown agents must count zero")
	}
}
