// SPDX-License-Identifier: Apache-2.0

// Package bus is the in-process publish/subscribe layer between the
// state-mutating producers (orchestrator, executor) and the delivery
// adapters. Delivery is best-effort and at-most-once per subscription;
// catch-up reads belong to the state store, not the bus.
package bus

import (
	"log/slog"
	"sync"

	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/metrics"
)

// TopicFirehose carries every event. The executor consumes it to drive the
// step state machine.
const TopicFirehose = "firehose"

func WorkflowTopic(workflowID string) string {
	return "workflow:" + workflowID
}

func OwnerTopic(ownerID string) string {
	return "owner:" + ownerID
}

// Subscription is one consumer registration. C is closed on Unsubscribe or
// bus Close.
type Subscription struct {
	C chan domain.Event

	topic string
	once  sync.Once
}

func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.C)
	})
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
	logger *slog.Logger
}

func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[string]map[*Subscription]struct{}),
		logger: logger,
	}
}

func (b *Bus) Subscribe(topic string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}

	sub := &Subscription{
		C:     make(chan domain.Event, buffer),
		topic: topic,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub.close()
		return sub
	}

	set, ok := b.subs[topic]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[topic] = set
	}
	set[sub] = struct{}{}

	return sub
}

func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.subs[sub.topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sub.topic)
		}
	}
	sub.close()
}

// Publish fans the event out to the firehose, the workflow topic and, when an
// owner is set, the owner topic. Publish never blocks: frames for a full
// subscriber buffer are dropped and counted.
func (b *Bus) Publish(ev domain.Event) {
	topics := []string{TopicFirehose, WorkflowTopic(ev.WorkflowID)}
	if ev.OwnerID != "" {
		topics = append(topics, OwnerTopic(ev.OwnerID))
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, topic := range topics {
		for sub := range b.subs[topic] {
			select {
			case sub.C <- ev:
			default:
				metrics.IncDroppedEvents()
				b.logger.Warn("dropping event for slow subscriber",
					"topic", topic,
					"event_type", ev.Type,
					"workflow_id", ev.WorkflowID,
				)
			}
		}
	}
}

// Close tears down every subscription. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, set := range b.subs {
		for sub := range set {
			sub.close()
		}
	}
	b.subs = make(map[string]map[*Subscription]struct{})
}
