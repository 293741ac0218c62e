// SPDX-License-Identifier: Apache-2.0

// Package provider implements the completion backends and the fallback chain
// that tries them in order for a single step.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// The four ways a single provider call can fail. Everything a backend returns
// is mapped onto one of these before it leaves the package.
var (
	ErrRateLimited  = errors.New("provider rate limited")
	ErrUnavailable  = errors.New("provider unavailable")
	ErrTimeout      = errors.New("provider timed out")
	ErrUnauthorized = errors.New("provider unauthorized")
)

// Completion is a successful provider response. Provider and Model are
// required downstream for observability.
type Completion struct {
	Text     string
	Provider string
	Model    string
}

// Provider is one interchangeable completion backend.
type Provider interface {
	Name() string
	// Configured reports whether the backend has credentials. Unconfigured
	// providers stay in the chain and are skipped at call time.
	Configured() bool
	Complete(ctx context.Context, systemPrompt, userMessage string) (Completion, error)
}

// ExhaustedError reports that every provider in the chain failed. Last carries
// the final transient error for diagnostics.
type ExhaustedError struct {
	Last error
}

func (e *ExhaustedError) Error() string {
	if e.Last == nil {
		return "all providers exhausted"
	}
	return fmt.Sprintf("all providers exhausted: %v", e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}
