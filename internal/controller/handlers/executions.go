package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agentplane/internal/controller/middleware"
	"agentplane/internal/dispatcher"
	"agentplane/internal/store"
	"agentplane/pkg/api"

	"github.com/google/uuid"
)

const defaultListLimit = 100

// SubmitExecution handles POST /executions.
// It creates the pending execution record and enqueues the dispatch job in
// one transaction, then returns 202: the execution runs asynchronously.
func (h *Handlers) SubmitExecution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	org, ok := middleware.OrgFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.SubmitExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ModuleID) == "" {
		h.httpError(w, "module_id is required", http.StatusBadRequest)
		return
	}

	execution := &store.Execution{
		ID:        uuid.New(),
		ModuleID:  req.ModuleID,
		OrgID:     org.ID,
		TaskID:    req.TaskID,
		Input:     req.InputData,
		Status:    store.ExecutionStatusPending,
		StartedAt: time.Now().UTC(),
	}

	tx, err := h.store.BeginTx(ctx)
	if err != nil {
		h.httpError(w, "Failed to start transaction", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback()

	if err := h.store.CreateExecution(ctx, tx, execution); err != nil {
		h.httpError(w, "Failed to create execution", http.StatusInternalServerError)
		return
	}

	job := dispatcher.Job{
		ModuleID:    req.ModuleID,
		OrgID:       org.ID,
		TaskID:      req.TaskID,
		InputData:   req.InputData,
		ExecutionID: execution.ID,
	}
	if err := h.disp.Submit(ctx, tx, job); err != nil {
		h.httpError(w, "Failed to enqueue execution", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(); err != nil {
		h.httpError(w, "Failed to commit", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusAccepted, api.SubmitExecutionResponse{
		ExecutionID: execution.ID.String(),
		Status:      string(execution.Status),
	})
}

// GetExecution handles GET /executions/{id}.
// Terminal results are served from the read cache when present.
func (h *Handlers) GetExecution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	org, ok := middleware.OrgFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	executionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid execution id", http.StatusBadRequest)
		return
	}

	cacheKey := "execution:" + org.ID.String() + ":" + executionID.String()
	if h.cache != nil {
		if cached, ok := h.cache.Get(ctx, cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}
	}

	execution, err := h.store.GetExecution(ctx, executionID, org.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.httpError(w, "Execution not found", http.StatusNotFound)
			return
		}
		h.httpError(w, "Failed to load execution", http.StatusInternalServerError)
		return
	}

	resp := toExecutionResponse(execution)

	// Only terminal states are cached; pending and running change under us.
	if h.cache != nil && execution.Status.Terminal() {
		if body, err := json.Marshal(resp); err == nil {
			h.cache.Set(ctx, cacheKey, body)
		}
	}

	h.respondJson(w, http.StatusOK, resp)
}

// ListExecutions handles GET /executions.
// An optional module_id query parameter narrows the list to one module.
func (h *Handlers) ListExecutions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	org, ok := middleware.OrgFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.httpError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var (
		executions []store.Execution
		err        error
	)
	if moduleID := r.URL.Query().Get("module_id"); moduleID != "" {
		executions, err = h.store.ListExecutionsByModule(ctx, moduleID, org.ID, limit)
	} else {
		executions, err = h.store.ListExecutionsByOrg(ctx, org.ID, limit)
	}
	if err != nil {
		h.httpError(w, "Failed to list executions", http.StatusInternalServerError)
		return
	}

	resp := api.ListExecutionsResponse{
		Executions: make([]api.ExecutionResponse, 0, len(executions)),
	}
	for i := range executions {
		resp.Executions = append(resp.Executions, toExecutionResponse(&executions[i]))
	}
	h.respondJson(w, http.StatusOK, resp)
}

func toExecutionResponse(e *store.Execution) api.ExecutionResponse {
	return api.ExecutionResponse{
		ID:          e.ID.String(),
		ModuleID:    e.ModuleID,
		TaskID:      e.TaskID,
		Status:      string(e.Status),
		InputData:   e.Input,
		OutputData:  e.Output,
		Error:       e.Error,
		StartedAt:   e.StartedAt,
		CompletedAt: e.CompletedAt,
	}
}
