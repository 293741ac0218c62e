// SPDX-License-Identifier: Apache-2.0

package detect

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestDetectRuleMatches(t *testing.T) {
	cases := []struct {
		message string
		agents  []string
	}{
		{"Assess my portfolio risk", []string{"analyst", "riskManager", "advisor"}},
		{"Can you review the risk in my portfolio please", []string{"analyst", "riskManager", "advisor"}},
		{"When can I retire if I keep saving like this", []string{"planner", "analyst", "advisor"}},
		{"Should I rebalance my holdings", []string{"analyst", "advisor"}},
	}

	for _, tc := range cases {
		got := Detect(tc.message, nil)
		if got == nil {
			t.Fatalf("Detect(%q) = nil, want %v", tc.message, tc.agents)
		}
		if !reflect.DeepEqual(got.ParticipantAgents, tc.agents) {
			t.Fatalf("Detect(%q) agents = %v, want %v", tc.message, got.ParticipantAgents, tc.agents)
		}
		if got.EstimatedSeconds <= 0 {
			t.Fatalf("Detect(%q) must estimate a positive duration", tc.message)
		}
	}
}

func TestDetectHeuristicFallback(t *testing.T) {
	msg := "What does my spending look like this month? And how much could I put aside?"
	got := Detect(msg, nil)
	if got == nil {
		t.Fatal("multi-question message should fall back to the default agent pair")
	}
	if !reflect.DeepEqual(got.ParticipantAgents, []string{"analyst", "advisor"}) {
		t.Fatalf("unexpected default agents: %v", got.ParticipantAgents)
	}
}

func TestDetectDeclines(t *testing.T) {
	for _, msg := range []string{
		"",
		"   ",
		"What is the price of AAPL",
		"hello",
	} {
		if got := Detect(msg, nil); got != nil {
			t.Fatalf("Detect(%q) = %+v, want nil", msg, got)
		}
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	msg := "Assess my portfolio risk"
	ctx := json.RawMessage(`{"accounts":["a","b"]}`)

	first := Detect(msg, ctx)
	for i := 0; i < 50; i++ {
		again := Detect(msg, ctx)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("detection not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestDetectResultIsolated(t *testing.T) {
	first := Detect("Assess my portfolio risk", nil)
	first.ParticipantAgents[0] = "mutated"

	second := Detect("Assess my portfolio risk", nil)
	if second.ParticipantAgents[0] != "analyst" {
		t.Fatal("callers must not be able to mutate rule tables through results")
	}
}
