// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"errors"
	"log/slog"

	"github.com/finsight/orchestrator/internal/metrics"
)

// Chain tries an ordered list of providers until one succeeds. Each provider
// is tried at most once per call; there is no inner retry loop.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		logger:    logger,
	}
}

// Names lists the configured chain in order, for logs and the version surface.
func (c *Chain) Names() []string {
	out := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, p.Name())
	}
	return out
}

// Complete walks the chain. RateLimited, Unavailable and Timeout advance to
// the next provider with the error recorded; Unauthorized and unconfigured
// providers are skipped without counting as a failed attempt. When nothing is
// left the call fails with ExhaustedError wrapping the last transient error.
func (c *Chain) Complete(ctx context.Context, systemPrompt, userMessage string) (Completion, error) {
	var lastErr error
	attempted := 0

	for _, p := range c.providers {
		if !p.Configured() {
			c.logger.Debug("provider not configured, skipping", "provider", p.Name())
			metrics.IncProviderAttempt(p.Name(), "skipped")
			continue
		}

		completion, err := p.Complete(ctx, systemPrompt, userMessage)
		if err == nil {
			completion.Provider = p.Name()
			metrics.IncProviderAttempt(p.Name(), "success")
			if attempted > 0 {
				metrics.IncProviderFallback()
			}
			return completion, nil
		}

		if errors.Is(err, ErrUnauthorized) {
			c.logger.Warn("provider rejected credentials, skipping",
				"provider", p.Name(),
				"error", err,
			)
			metrics.IncProviderAttempt(p.Name(), "unauthorized")
			continue
		}

		attempted++
		lastErr = err
		metrics.IncProviderAttempt(p.Name(), failureOutcome(err))
		c.logger.Warn("provider attempt failed",
			"provider", p.Name(),
			"error", err,
		)
	}

	return Completion{}, &ExhaustedError{Last: lastErr}
}

func failureOutcome(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
