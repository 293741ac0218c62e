// SPDX-License-Identifier: Apache-2.0

// Package detect classifies an incoming message as a multi-agent workflow or
// not. Detection is a pure function: no I/O, no clock, no randomness, so the
// same (message, context) pair always produces the same result.
package detect

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/finsight/orchestrator/internal/catalog"
)

// Result names the agents that will run, in order, plus a rough duration
// estimate surfaced to the submitter.
type Result struct {
	ParticipantAgents []string `json:"participant_agents"`
	EstimatedSeconds  int      `json:"estimated_seconds"`
}

type rule struct {
	pattern *regexp.Regexp
	agents  []string
}

// Rules are checked in order; the first match wins.
var rules = []rule{
	{
		pattern: regexp.MustCompile(`(?i)\b(assess|evaluate|review|check)\b.*\brisk\b|\brisk\b.*\bportfolio\b|\bportfolio\b.*\brisk\b`),
		agents:  []string{"analyst", "riskManager", "advisor"},
	},
	{
		pattern: regexp.MustCompile(`(?i)\bretire|retirement\b`),
		agents:  []string{"planner", "analyst", "advisor"},
	},
	{
		pattern: regexp.MustCompile(`(?i)\b(diversif\w*|rebalanc\w*|asset allocation)\b`),
		agents:  []string{"analyst", "advisor"},
	},
	{
		pattern: regexp.MustCompile(`(?i)\b(saving|savings|budget)\b.*\b(invest\w*|goal\w*)\b`),
		agents:  []string{"planner", "advisor"},
	},
}

var defaultAgents = []string{"analyst", "advisor"}

var clauseMarkers = []string{" and ", " then ", " also ", "; "}

// Detect returns nil when the message should be handled as a single
// non-workflow request. The context payload is opaque to the core and is not
// consulted beyond being accepted.
func Detect(message string, _ json.RawMessage) *Result {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return nil
	}

	for _, r := range rules {
		if r.pattern.MatchString(msg) {
			return newResult(r.agents)
		}
	}

	if structurallyComplex(msg) {
		return newResult(defaultAgents)
	}

	return nil
}

// structurallyComplex is the fallback heuristic: several questions, or a long
// message with multiple clauses, is worth fanning out to the default pair.
func structurallyComplex(msg string) bool {
	if strings.Count(msg, "?") >= 2 {
		return true
	}

	if len(msg) < 80 {
		return false
	}

	lower := strings.ToLower(msg)
	clauses := 0
	for _, marker := range clauseMarkers {
		clauses += strings.Count(lower, marker)
	}
	return clauses >= 2
}

func newResult(agents []string) *Result {
	// Copy so callers can never mutate the rule tables.
	out := make([]string, len(agents))
	copy(out, agents)

	return &Result{
		ParticipantAgents: out,
		EstimatedSeconds:  catalog.EstimatedSeconds(out),
	}
}
