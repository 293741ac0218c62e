// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/finsight/orchestrator/internal/bus"
	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/metrics"
)

const streamBuffer = 64

// streamTarget describes what a push connection follows. Workflow streams
// carry a snapshot of the record at connect time and close after the terminal
// frame; owner streams span many workflows and stay open until the client
// goes away.
type streamTarget struct {
	topic          string
	stopOnTerminal bool
	snapshot       *domain.Workflow
}

func workflowStreamTarget(w *domain.Workflow) streamTarget {
	return streamTarget{
		topic:          bus.WorkflowTopic(w.ID),
		stopOnTerminal: true,
		snapshot:       w,
	}
}

func ownerStreamTarget(ownerID string) streamTarget {
	return streamTarget{topic: bus.OwnerTopic(ownerID)}
}

// terminalSnapshotEvent replays the outcome of a workflow that finished before
// the client connected, so late subscribers are not left waiting on a bus that
// will never speak again.
func (t streamTarget) terminalSnapshotEvent() (domain.Event, bool) {
	if t.snapshot == nil || !t.snapshot.Terminal() {
		return domain.Event{}, false
	}
	return domain.NewWorkflowCompleted(t.snapshot), true
}

func serveSSE(w http.ResponseWriter, r *http.Request, subscriber EventSubscriber, logger *slog.Logger, heartbeat time.Duration, target streamTarget) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	writeFrame := func(ev domain.Event) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if ev, done := target.terminalSnapshotEvent(); done {
		if err := writeFrame(ev); err != nil {
			logger.Warn("sse snapshot write failed", "topic", target.topic, "error", err)
		}
		return
	}

	sub := subscriber.Subscribe(target.topic, streamBuffer)
	defer subscriber.Unsubscribe(sub)

	metrics.IncStreamConnections("sse")
	defer metrics.DecStreamConnections("sse")

	logger.Debug("sse stream opened", "topic", target.topic)

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := writeFrame(domain.NewHeartbeat()); err != nil {
				logger.Debug("sse heartbeat write failed", "topic", target.topic, "error", err)
				return
			}
		case ev, open := <-sub.C:
			if !open {
				return
			}
			if err := writeFrame(ev); err != nil {
				logger.Debug("sse event write failed", "topic", target.topic, "error", err)
				return
			}
			if target.stopOnTerminal && ev.TerminalForWorkflow() {
				return
			}
		}
	}
}
