// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/finsight/orchestrator/internal/domain"
)

func testBus() *Bus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func recv(t *testing.T, sub *Subscription) domain.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.Event{}
}

func TestPublishFansOutToTopics(t *testing.T) {
	b := testBus()
	defer b.Close()

	fire := b.Subscribe(TopicFirehose, 8)
	byWorkflow := b.Subscribe(WorkflowTopic("wf-1"), 8)
	byOwner := b.Subscribe(OwnerTopic("alice"), 8)
	other := b.Subscribe(WorkflowTopic("wf-2"), 8)

	b.Publish(domain.Event{
		Type:       domain.EventWorkflowStarted,
		WorkflowID: "wf-1",
		OwnerID:    "alice",
	})

	for _, sub := range []*Subscription{fire, byWorkflow, byOwner} {
		ev := recv(t, sub)
		if ev.WorkflowID != "wf-1" {
			t.Fatalf("unexpected workflow id %s", ev.WorkflowID)
		}
	}

	select {
	case ev := <-other.C:
		t.Fatalf("wf-2 subscriber must not receive wf-1 events, got %+v", ev)
	default:
	}
}

func TestPublishOrderPreservedPerSubscription(t *testing.T) {
	b := testBus()
	defer b.Close()

	sub := b.Subscribe(WorkflowTopic("wf-1"), 16)

	types := []domain.EventType{
		domain.EventWorkflowStarted,
		domain.EventAgentStarted,
		domain.EventAgentCompleted,
		domain.EventWorkflowCompleted,
	}
	for _, typ := range types {
		b.Publish(domain.Event{Type: typ, WorkflowID: "wf-1"})
	}

	for i, want := range types {
		if got := recv(t, sub).Type; got != want {
			t.Fatalf("event %d: got %s want %s", i, got, want)
		}
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	b := testBus()
	defer b.Close()

	sub := b.Subscribe(WorkflowTopic("wf-1"), 1)

	b.Publish(domain.Event{Type: domain.EventAgentProgress, WorkflowID: "wf-1"})
	// Buffer full; must not block.
	done := make(chan struct{})
	go func() {
		b.Publish(domain.Event{Type: domain.EventAgentProgress, WorkflowID: "wf-1"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}

	if got := len(sub.C); got != 1 {
		t.Fatalf("expected exactly 1 buffered event, got %d", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := testBus()
	defer b.Close()

	sub := b.Subscribe(WorkflowTopic("wf-1"), 4)
	b.Unsubscribe(sub)

	if _, ok := <-sub.C; ok {
		t.Fatal("expected closed channel after Unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	b.Publish(domain.Event{Type: domain.EventAgentProgress, WorkflowID: "wf-1"})

	// Double unsubscribe is a no-op.
	b.Unsubscribe(sub)
}

func TestCloseTearsDownSubscriptions(t *testing.T) {
	b := testBus()

	sub := b.Subscribe(TopicFirehose, 4)
	b.Close()

	if _, ok := <-sub.C; ok {
		t.Fatal("expected closed channel after bus Close")
	}

	// Subscribing after close yields an already-closed subscription.
	late := b.Subscribe(TopicFirehose, 4)
	if _, ok := <-late.C; ok {
		t.Fatal("expected closed subscription after bus Close")
	}

	b.Publish(domain.Event{Type: domain.EventAgentProgress, WorkflowID: "wf-1"})
}
