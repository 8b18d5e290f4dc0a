// Package handlers contains HTTP handlers for the controller API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"agentplane/internal/agentclient"
	"agentplane/internal/dispatcher"
	"agentplane/internal/store"
	"agentplane/pkg/api"
)

// StoreFactory combines the interfaces needed for the controller to function.
type StoreFactory interface {
	BeginTx(ctx context.Context) (store.Tx, error)
	Ping(ctx context.Context) error
	store.ExecutionStore
	store.OrgStore
	store.Queue
}

// Submitter enqueues execution jobs. Implemented by dispatcher.Dispatcher.
type Submitter interface {
	Submit(ctx context.Context, tx store.DBTransaction, job dispatcher.Job) error
}

// ResultCache is the read cache for execution lookups. Implemented by
// cache.Cache.
type ResultCache interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool)
	Set(ctx context.Context, key string, value json.RawMessage)
	Delete(ctx context.Context, key string)
}

// HealthChecker probes the agent execution backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) agentclient.Health
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	store   StoreFactory
	disp    Submitter
	cache   ResultCache
	backend HealthChecker
	logger  *slog.Logger
}

// New creates a new Handlers instance. cache may be nil to disable the read
// cache.
func New(s StoreFactory, disp Submitter, cache ResultCache, backend HealthChecker, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: s, disp: disp, cache: cache, backend: backend, logger: logger}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}
