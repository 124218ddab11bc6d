// Package api exposes the workflow engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/forgeops/autopr/internal/apperr"
	"github.com/forgeops/autopr/internal/workflow"
)

// Handler serves the PR workflow API.
type Handler struct {
	orch *workflow.Orchestrator
}

// NewHandler creates the API handler.
func NewHandler(orch *workflow.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// Register mounts all API routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/pr/create", h.CreatePR).Methods("POST")
	r.HandleFunc("/api/pr/create/async", h.CreatePRAsync).Methods("POST")
	r.HandleFunc("/api/pr/requests/{id}/status", h.RequestStatus).Methods("GET")
	r.HandleFunc("/api/async/task/{id}/status", h.TaskStatus).Methods("GET")
	r.HandleFunc("/api/repository/analyze", h.AnalyzeRepository).Methods("POST")
}

type createPRPayload struct {
	Repository  string           `json:"repository"`
	UserRequest string           `json:"userRequest"`
	Options     workflow.Options `json:"options"`
}

type analyzePayload struct {
	Repository string `json:"repository"`
	Async      bool   `json:"async"`
}

// CreatePR runs the whole pipeline synchronously and returns the run.
func (h *Handler) CreatePR(w http.ResponseWriter, r *http.Request) {
	var payload createPRPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, apperr.Wrap(apperr.CodeValidation, "request body is not valid JSON", err))
		return
	}

	req, err := h.orch.Submit(payload.Repository, payload.UserRequest, payload.Options)
	if err != nil {
		h.writeError(w, err)
		return
	}

	run, err := h.orch.Execute(r.Context(), req.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"requestId":     req.ID,
		"runId":         run.ID,
		"status":        run.Status,
		"branch":        run.BranchName,
		"prUrl":         run.PRURL,
		"prTitle":       run.PRTitle,
		"prDescription": req.Options.PRDescription,
		"steps":         run.Steps,
	})
}

// CreatePRAsync accepts the request and schedules the pipeline in the
// background, returning the task to poll.
func (h *Handler) CreatePRAsync(w http.ResponseWriter, r *http.Request) {
	var payload createPRPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, apperr.Wrap(apperr.CodeValidation, "request body is not valid JSON", err))
		return
	}

	req, err := h.orch.Submit(payload.Repository, payload.UserRequest, payload.Options)
	if err != nil {
		h.writeError(w, err)
		return
	}

	task, err := h.orch.ExecuteAsync(req.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"requestId":             req.ID,
		"taskId":                task.ID,
		"status":                task.Status,
		"statusPollingLocation": "/api/async/task/" + task.ID + "/status",
	})
}

// RequestStatus returns the request and, once started, its run.
func (h *Handler) RequestStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	req, ok := h.orch.Requests().Get(id)
	if !ok {
		h.writeError(w, apperr.Newf(apperr.CodeNotFound, "request %s not found", id))
		return
	}

	body := map[string]any{"request": req}
	if run, ok := h.orch.Runs().GetByRequest(id); ok {
		body["run"] = run
	}
	writeJSON(w, http.StatusOK, body)
}

// TaskStatus returns one background task.
func (h *Handler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	task, ok := h.orch.Tasks().Get(id)
	if !ok {
		h.writeError(w, apperr.Newf(apperr.CodeNotFound, "task %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// AnalyzeRepository runs repository introspection, inline or as a
// background task.
func (h *Handler) AnalyzeRepository(w http.ResponseWriter, r *http.Request) {
	var payload analyzePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, apperr.Wrap(apperr.CodeValidation, "request body is not valid JSON", err))
		return
	}

	if payload.Async {
		task, err := h.orch.AnalyzeAsync(payload.Repository)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"taskId":                task.ID,
			"status":                task.Status,
			"statusPollingLocation": "/api/async/task/" + task.ID + "/status",
		})
		return
	}

	summary, err := h.orch.AnalyzeRepository(r.Context(), payload.Repository)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type errorBody struct {
	Code          apperr.Code    `json:"code"`
	Message       string         `json:"message"`
	Details       map[string]any `json:"details,omitempty"`
	Suggestions   []string       `json:"suggestions"`
	RetryPossible bool           `json:"retryPossible"`
}

type errorEnvelope struct {
	Error     errorBody `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	ErrorID   string    `json:"errorId"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	e := apperr.AsError(err)
	status := http.StatusBadGateway
	if e == nil {
		if errors.Is(err, workflow.ErrQueueFull) || errors.Is(err, workflow.ErrQueueClosed) {
			status = http.StatusServiceUnavailable
			e = apperr.Wrap(apperr.CodeTransient, "server is overloaded, try again later", err)
		} else {
			e = apperr.Wrap(apperr.CodeTransient, "internal error", err)
		}
	} else {
		status = statusFor(e.Code)
	}

	id, _ := gonanoid.New()
	log.Printf("[API] error %s: %v", id, err)

	writeJSON(w, status, errorEnvelope{
		Error: errorBody{
			Code:          e.Code,
			Message:       e.Message,
			Details:       e.Details,
			Suggestions:   e.Suggestions,
			RetryPossible: e.Retryable,
		},
		Timestamp: time.Now().UTC(),
		ErrorID:   id,
	})
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeAuthentication:
		return http.StatusUnauthorized
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeNameCollision:
		return http.StatusConflict
	case apperr.CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[API] failed to encode response: %v", err)
	}
}
