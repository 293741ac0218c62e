// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/metrics"
	"github.com/finsight/orchestrator/internal/orchestrator"
	"github.com/finsight/orchestrator/internal/store"
)

type submitRequest struct {
	Message string          `json:"message"`
	OwnerID string          `json:"owner_id"`
	Context json.RawMessage `json:"context,omitempty"`
}

type submitResponse struct {
	IsWorkflow        bool     `json:"is_workflow"`
	WorkflowID        string   `json:"workflow_id,omitempty"`
	ParticipantAgents []string `json:"participant_agents,omitempty"`
	EstimatedSeconds  int      `json:"estimated_seconds,omitempty"`
}

type pollResponse struct {
	WorkflowID string                `json:"workflow_id"`
	Status     domain.WorkflowStatus `json:"status"`
	NextCursor int                   `json:"next_cursor"`
	NewEvents  []domain.Event        `json:"new_events"`
	Results    []domain.AgentResult  `json:"results,omitempty"`
}

type Deps struct {
	Orchestrator WorkflowSubmitter
	Workflows    WorkflowReader
	Bus          EventSubscriber
	Logger       *slog.Logger

	// HeartbeatInterval paces idle frames on push connections. Zero means
	// the 30s default.
	HeartbeatInterval time.Duration

	Version   string
	Commit    string
	BuildDate string
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.Init()

	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}

	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("health check hit")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	// ---------------- SUBMIT WORKFLOW ----------------

	r.Post("/workflows", func(w http.ResponseWriter, r *http.Request) {
		reqBody, err := decodeSubmitRequest(r)
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		traceID, _ := requestIDFromContext(r.Context())

		handle, err := deps.Orchestrator.Submit(r.Context(), orchestrator.SubmitRequest{
			Message: reqBody.Message,
			OwnerID: reqBody.OwnerID,
			Context: reqBody.Context,
			TraceID: traceID,
		})
		if err != nil {
			if errors.Is(err, domain.ErrNotWorkflow) {
				writeJSON(w, http.StatusOK, submitResponse{IsWorkflow: false})
				return
			}
			logger.Error("submit workflow failed", "error", err)
			http.Error(w, "failed to submit workflow", http.StatusInternalServerError)
			return
		}

		logger.Info("workflow submitted via API",
			"workflow_id", handle.WorkflowID,
			"owner_id", reqBody.OwnerID,
		)

		writeJSON(w, http.StatusAccepted, submitResponse{
			IsWorkflow:        true,
			WorkflowID:        handle.WorkflowID,
			ParticipantAgents: handle.ParticipantAgents,
			EstimatedSeconds:  handle.EstimatedSeconds,
		})
	})

	// ---------------- GET WORKFLOW ----------------

	r.Get("/workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
		workflow, ok := loadWorkflow(w, r, deps.Workflows, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, workflow)
	})

	// ---------------- POLL STATUS (CURSOR) ----------------

	r.Get("/workflows/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		workflow, ok := loadWorkflow(w, r, deps.Workflows, logger)
		if !ok {
			return
		}

		since, err := parseCursor(r.URL.Query().Get("since"))
		if err != nil {
			http.Error(w, "invalid since cursor", http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusOK, buildPollResponse(workflow, since))
	})

	// ---------------- EVENT STREAM (SSE) ----------------

	r.Get("/workflows/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		workflow, ok := loadWorkflow(w, r, deps.Workflows, logger)
		if !ok {
			return
		}
		serveSSE(w, r, deps.Bus, logger, heartbeat, workflowStreamTarget(workflow))
	})

	r.Get("/owners/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		serveSSE(w, r, deps.Bus, logger, heartbeat, ownerStreamTarget(chi.URLParam(r, "id")))
	})

	// ---------------- EVENT SOCKET (WEBSOCKET) ----------------

	r.Get("/workflows/{id}/ws", func(w http.ResponseWriter, r *http.Request) {
		workflow, ok := loadWorkflow(w, r, deps.Workflows, logger)
		if !ok {
			return
		}
		serveSocket(w, r, deps.Bus, logger, heartbeat, workflowStreamTarget(workflow))
	})

	r.Get("/owners/{id}/ws", func(w http.ResponseWriter, r *http.Request) {
		serveSocket(w, r, deps.Bus, logger, heartbeat, ownerStreamTarget(chi.URLParam(r, "id")))
	})

	return r
}

func loadWorkflow(w http.ResponseWriter, r *http.Request, workflows WorkflowReader, logger *slog.Logger) (*domain.Workflow, bool) {
	workflowID := strings.TrimSpace(chi.URLParam(r, "id"))
	if workflowID == "" {
		http.Error(w, "invalid workflow ID", http.StatusBadRequest)
		return nil, false
	}

	workflow, err := workflows.Load(r.Context(), workflowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("workflow not found", "workflow_id", workflowID)
			http.Error(w, "workflow not found", http.StatusNotFound)
			return nil, false
		}
		logger.Error("load workflow failed", "workflow_id", workflowID, "error", err)
		http.Error(w, "failed to load workflow", http.StatusInternalServerError)
		return nil, false
	}

	return workflow, true
}

// buildPollResponse derives an incremental view from the stored record. The
// cursor counts step indexes: only steps strictly after it that have reached a
// terminal step state are reported, so a non-decreasing cursor never re-reads
// delivered items.
func buildPollResponse(w *domain.Workflow, since int) pollResponse {
	resp := pollResponse{
		WorkflowID: w.ID,
		Status:     w.Status,
		NextCursor: since,
		NewEvents:  []domain.Event{},
	}

	lastIndex := -1
	for idx := since + 1; idx < len(w.Steps); idx++ {
		step := w.Steps[idx]
		if step.Status != domain.StepCompleted && step.Status != domain.StepError {
			break
		}
		if idx < len(w.Results) {
			resp.NewEvents = append(resp.NewEvents, domain.NewAgentCompleted(w, idx, w.Results[idx]))
		}
		lastIndex = idx
	}
	if lastIndex >= 0 {
		resp.NextCursor = lastIndex
	}

	if w.Terminal() {
		resp.Results = w.Results
		// The terminal frame rides along with the final step's delivery.
		if lastIndex == len(w.Steps)-1 {
			resp.NewEvents = append(resp.NewEvents, domain.NewWorkflowCompleted(w))
		}
	}

	return resp
}

func parseCursor(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < -1 {
		return 0, errors.New("invalid cursor")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeSubmitRequest(r *http.Request) (submitRequest, error) {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return submitRequest{}, errors.New("empty request body")
	}

	var req submitRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return submitRequest{}, err
	}

	// Ensure there is only one JSON object.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return submitRequest{}, errors.New("request body must contain exactly one JSON object")
	}

	req.Message = strings.TrimSpace(req.Message)
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	if req.Message == "" {
		return submitRequest{}, errors.New("message is required")
	}

	return req, nil
}

func valueOrDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
