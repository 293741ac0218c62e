// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type fakeProvider struct {
	name       string
	configured bool
	completion Completion
	err        error
	calls      int
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) Complete(ctx context.Context, systemPrompt, userMessage string) (Completion, error) {
	f.calls++
	if f.err != nil {
		return Completion{}, f.err
	}
	return f.completion, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChainFallsBackOnTimeout(t *testing.T) {
	groq := &fakeProvider{name: "groq", configured: true, err: ErrTimeout}
	azure := &fakeProvider{
		name:       "azure",
		configured: true,
		completion: Completion{Text: "ok", Model: "gpt-4o-mini"},
	}
	openai := &fakeProvider{name: "openai", configured: true}

	chain := NewChain(discardLogger(), groq, azure, openai)

	got, err := chain.Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if got.Provider != "azure" {
		t.Fatalf("expected provider azure, got %s", got.Provider)
	}
	if groq.calls != 1 {
		t.Fatalf("groq must be tried exactly once, got %d", groq.calls)
	}
	if azure.calls != 1 {
		t.Fatalf("azure must be tried exactly once, got %d", azure.calls)
	}
	if openai.calls != 0 {
		t.Fatal("openai must not be tried after azure succeeds")
	}
}

func TestChainNeverRetriesSameProvider(t *testing.T) {
	a := &fakeProvider{name: "a", configured: true, err: ErrRateLimited}
	b := &fakeProvider{
		name:       "b",
		configured: true,
		completion: Completion{Text: "answer"},
	}

	chain := NewChain(discardLogger(), a, b)

	for i := 0; i < 3; i++ {
		a.calls, b.calls = 0, 0
		if _, err := chain.Complete(context.Background(), "s", "u"); err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if a.calls != 1 {
			t.Fatalf("a attempted %d times in one call, want 1", a.calls)
		}
		if b.calls != 1 {
			t.Fatalf("b attempted %d times in one call, want 1", b.calls)
		}
	}
}

func TestChainSkipsUnconfiguredAndUnauthorized(t *testing.T) {
	missing := &fakeProvider{name: "missing", configured: false}
	badKey := &fakeProvider{name: "badkey", configured: true, err: ErrUnauthorized}
	ok := &fakeProvider{
		name:       "ok",
		configured: true,
		completion: Completion{Text: "answer"},
	}

	chain := NewChain(discardLogger(), missing, badKey, ok)

	got, err := chain.Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Provider != "ok" {
		t.Fatalf("expected provider ok, got %s", got.Provider)
	}
	if missing.calls != 0 {
		t.Fatal("unconfigured provider must not be called")
	}
}

func TestChainExhausted(t *testing.T) {
	a := &fakeProvider{name: "a", configured: true, err: ErrUnavailable}
	b := &fakeProvider{name: "b", configured: true, err: ErrTimeout}

	chain := NewChain(discardLogger(), a, b)

	_, err := chain.Complete(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected exhaustion error")
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %T: %v", err, err)
	}
	if !errors.Is(exhausted.Last, ErrTimeout) {
		t.Fatalf("expected last error from b, got %v", exhausted.Last)
	}
}

func TestChainAllUnauthorizedStillExhausted(t *testing.T) {
	a := &fakeProvider{name: "a", configured: true, err: ErrUnauthorized}

	chain := NewChain(discardLogger(), a)

	_, err := chain.Complete(context.Background(), "s", "u")
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Last != nil {
		t.Fatalf("unauthorized skips must not surface as the last error, got %v", exhausted.Last)
	}
}
