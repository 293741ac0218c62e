// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/finsight/orchestrator/internal/domain"
)

// readSSEFrames consumes the stream until a terminal frame or maxFrames,
// skipping heartbeats.
func readSSEFrames(t *testing.T, body *bufio.Reader, maxFrames int) []domain.Event {
	t.Helper()
	var events []domain.Event
	for len(events) < maxFrames {
		line, err := body.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev domain.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("decode SSE frame: %v", err)
		}
		if ev.Type == domain.EventHeartbeat {
			continue
		}
		events = append(events, ev)
		if ev.TerminalForWorkflow() {
			break
		}
	}
	return events
}

func TestSSEStreamsWorkflowEvents(t *testing.T) {
	w := sampleWorkflow("wf-sse", domain.WorkflowRunning)
	router, b := newTestRouter(t, &fakeSubmitter{}, &fakeReader{workflows: map[string]*domain.Workflow{w.ID: w}})

	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/workflows/wf-sse/events")
	if err != nil {
		t.Fatalf("open SSE stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q, want text/event-stream", ct)
	}

	// The subscription is registered synchronously before the handler
	// blocks, but give the server goroutine a beat to reach it.
	time.Sleep(50 * time.Millisecond)

	b.Publish(domain.NewAgentStarted(w, 0))
	completeStep(w, 0, "")
	b.Publish(domain.NewAgentCompleted(w, 0, w.Results[0]))
	completeStep(w, 1, "")
	w.Status = domain.WorkflowCompleted
	b.Publish(domain.NewWorkflowCompleted(w))

	events := readSSEFrames(t, bufio.NewReader(resp.Body), 8)
	want := []domain.EventType{
		domain.EventAgentStarted,
		domain.EventAgentCompleted,
		domain.EventWorkflowCompleted,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Fatalf("event[%d].Type = %q, want %q", i, ev.Type, want[i])
		}
		if ev.WorkflowID != "wf-sse" {
			t.Fatalf("event[%d].WorkflowID = %q, want wf-sse", i, ev.WorkflowID)
		}
	}
}

func TestSSETerminalSnapshotForFinishedWorkflow(t *testing.T) {
	w := sampleWorkflow("wf-done", domain.WorkflowRunning)
	completeStep(w, 0, "")
	completeStep(w, 1, "")
	w.Status = domain.WorkflowCompleted
	router, _ := newTestRouter(t, &fakeSubmitter{}, &fakeReader{workflows: map[string]*domain.Workflow{w.ID: w}})

	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/workflows/wf-done/events")
	if err != nil {
		t.Fatalf("open SSE stream: %v", err)
	}
	defer resp.Body.Close()

	events := readSSEFrames(t, bufio.NewReader(resp.Body), 4)
	if len(events) != 1 || events[0].Type != domain.EventWorkflowCompleted {
		t.Fatalf("snapshot events = %+v, want single workflow_completed", events)
	}

	var payload domain.WorkflowCompletedPayload
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil {
		t.Fatalf("decode snapshot payload: %v", err)
	}
	if len(payload.Results) != 2 {
		t.Fatalf("snapshot results = %d, want 2", len(payload.Results))
	}
}

func TestSSEUnknownWorkflowIsNotFound(t *testing.T) {
	router, _ := newTestRouter(t, &fakeSubmitter{}, &fakeReader{})

	req := httptest.NewRequest(http.MethodGet, "/workflows/missing/events", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestSSEOwnerStreamSpansWorkflows(t *testing.T) {
	router, b := newTestRouter(t, &fakeSubmitter{}, &fakeReader{})

	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/owners/owner-1/events")
	if err != nil {
		t.Fatalf("open owner stream: %v", err)
	}
	defer resp.Body.Close()

	time.Sleep(50 * time.Millisecond)

	first := sampleWorkflow("wf-a", domain.WorkflowRunning)
	second := sampleWorkflow("wf-b", domain.WorkflowRunning)
	b.Publish(domain.NewAgentStarted(first, 0))
	first.Status = domain.WorkflowCompleted
	b.Publish(domain.NewWorkflowCompleted(first))
	b.Publish(domain.NewAgentStarted(second, 0))

	reader := bufio.NewReader(resp.Body)
	var events []domain.Event
	for len(events) < 3 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read owner stream: %v", err)
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev domain.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("decode owner frame: %v", err)
		}
		if ev.Type == domain.EventHeartbeat {
			continue
		}
		events = append(events, ev)
	}

	// The owner stream must survive one workflow's terminal frame and keep
	// delivering the next workflow's events.
	if events[1].Type != domain.EventWorkflowCompleted || events[1].WorkflowID != "wf-a" {
		t.Fatalf("event[1] = %+v, want wf-a workflow_completed", events[1])
	}
	if events[2].Type != domain.EventAgentStarted || events[2].WorkflowID != "wf-b" {
		t.Fatalf("event[2] = %+v, want wf-b agent_started", events[2])
	}
}

func TestWebSocketStreamsWorkflowEvents(t *testing.T) {
	w := sampleWorkflow("wf-ws", domain.WorkflowRunning)
	router, b := newTestRouter(t, &fakeSubmitter{}, &fakeReader{workflows: map[string]*domain.Workflow{w.ID: w}})

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/workflows/wf-ws/ws?channel=workflow:wf-ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)

	b.Publish(domain.NewAgentStarted(w, 0))
	w.Status = domain.WorkflowCompleted
	b.Publish(domain.NewWorkflowCompleted(w))

	var frames []socketFrame
	for len(frames) < 2 {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read websocket frame: %v", err)
		}
		var frame socketFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("decode websocket frame: %v", err)
		}
		if frame.Event.Type == domain.EventHeartbeat {
			continue
		}
		frames = append(frames, frame)
	}

	if frames[0].Channel != "workflow:wf-ws" {
		t.Fatalf("channel = %q, want echo of the requested channel", frames[0].Channel)
	}
	if frames[0].Event.Type != domain.EventAgentStarted {
		t.Fatalf("frame[0].Type = %q, want agent_started", frames[0].Event.Type)
	}
	if frames[1].Event.Type != domain.EventWorkflowCompleted {
		t.Fatalf("frame[1].Type = %q, want workflow_completed", frames[1].Event.Type)
	}

	// After the terminal frame the server closes the connection.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection close after terminal frame")
	}
}

func TestWebSocketTerminalSnapshot(t *testing.T) {
	w := sampleWorkflow("wf-ws-done", domain.WorkflowRunning)
	completeStep(w, 0, "")
	completeStep(w, 1, "")
	w.Status = domain.WorkflowCompleted
	router, _ := newTestRouter(t, &fakeSubmitter{}, &fakeReader{workflows: map[string]*domain.Workflow{w.ID: w}})

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/workflows/wf-ws-done/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read snapshot frame: %v", err)
	}
	var frame socketFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("decode snapshot frame: %v", err)
	}
	if frame.Event.Type != domain.EventWorkflowCompleted {
		t.Fatalf("snapshot type = %q, want workflow_completed", frame.Event.Type)
	}
	if frame.Channel != "" {
		t.Fatalf("channel = %q, want empty when none requested", frame.Channel)
	}
}
