// SPDX-License-Identifier: Apache-2.0

// Package catalog is the static agent registry: per-agent task descriptions,
// system prompts, and duration estimates. The orchestration core never
// interprets this content, it only threads it through to providers and events.
package catalog

import (
	"fmt"

	"github.com/finsight/orchestrator/internal/domain"
)

type Agent struct {
	Name             string
	TaskDescription  string
	SystemPrompt     string
	EstimatedSeconds int
}

var agents = map[string]Agent{
	"analyst": {
		Name:             "analyst",
		TaskDescription:  "Analyze current holdings, market exposure and historical performance",
		SystemPrompt:     "You are a financial analyst. Review the user's portfolio and market context and produce a concise, factual analysis. Stick to the data you are given.",
		EstimatedSeconds: 20,
	},
	"riskManager": {
		Name:             "riskManager",
		TaskDescription:  "Evaluate concentration, volatility and downside risk of the portfolio",
		SystemPrompt:     "You are a risk manager. Assess the risk profile described in the prior analysis, flag concentration and volatility concerns, and quantify downside scenarios where possible.",
		EstimatedSeconds: 15,
	},
	"advisor": {
		Name:             "advisor",
		TaskDescription:  "Synthesize findings into actionable recommendations",
		SystemPrompt:     "You are a financial advisor. Combine the prior agents' findings into clear, prioritized recommendations the user can act on. Note assumptions and caveats.",
		EstimatedSeconds: 15,
	},
	"planner": {
		Name:             "planner",
		TaskDescription:  "Build a savings and investment plan around the user's goals",
		SystemPrompt:     "You are a financial planner. Translate the user's goals into a staged plan with concrete milestones, contribution targets and timelines.",
		EstimatedSeconds: 20,
	},
}

func Lookup(name string) (Agent, error) {
	a, ok := agents[name]
	if !ok {
		return Agent{}, fmt.Errorf("%w: %s", domain.ErrUnknownAgent, name)
	}
	return a, nil
}

func TaskDescription(name string) (string, error) {
	a, err := Lookup(name)
	if err != nil {
		return "", err
	}
	return a.TaskDescription, nil
}

func SystemPrompt(name string) (string, error) {
	a, err := Lookup(name)
	if err != nil {
		return "", err
	}
	return a.SystemPrompt, nil
}

// EstimatedSeconds sums the per-agent estimates; unknown agents count zero.
func EstimatedSeconds(names []string) int {
	total := 0
	for _, name := range names {
		total += agents[name].EstimatedSeconds
	}
	return total
}
