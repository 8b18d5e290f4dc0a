// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"net/http"
	"time"

	"agentplane/internal/controller/handlers"
	"agentplane/internal/controller/middleware"
	"agentplane/internal/ratelimit"
)

// Options bundles the server dependencies beyond the store.
type Options struct {
	Dispatcher handlers.Submitter
	Cache      handlers.ResultCache
	Backend    handlers.HealthChecker
	// Limiter guards all routes per client IP; nil disables it.
	Limiter         *ratelimit.Limiter
	RateLimitWindow time.Duration
	RateLimitMax    int
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// New creates a new controller server.
func New(addr string, store handlers.StoreFactory, opts Options) *Server {
	h := handlers.New(store, opts.Dispatcher, opts.Cache, opts.Backend, nil)
	authMW := middleware.AuthMiddleware(store)
	quotaMW := middleware.QuotaMiddleware()

	mux := http.NewServeMux()

	mux.HandleFunc("POST /orgs", h.CreateOrg)

	// Authenticated org apis: per-org quota runs after auth.
	authed := func(hf http.HandlerFunc) http.Handler {
		return authMW(quotaMW(hf))
	}
	mux.Handle("POST /executions", authed(h.SubmitExecution))
	mux.Handle("GET /executions", authed(h.ListExecutions))
	mux.Handle("GET /executions/{id}", authed(h.GetExecution))

	// Probes stay unauthenticated.
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.HandleFunc("GET /health/backend", h.BackendHealth)

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	var root http.Handler = mux
	if opts.Limiter != nil {
		root = middleware.RateLimitMiddleware(opts.Limiter, opts.RateLimitWindow, opts.RateLimitMax)(root)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      root,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 90 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
