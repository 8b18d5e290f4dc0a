// Package main is the entry point for the agentplane worker.
// The worker pulls queued executions from Postgres and calls the agent
// backend. It owns concurrency, timeouts and retries.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"agentplane/internal/agentclient"
	"agentplane/internal/config"
	"agentplane/internal/dispatcher"
	"agentplane/internal/logger"
	"agentplane/internal/observability"
	"agentplane/internal/store/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgStore, err := postgres.New(ctx, cfg.DatabaseURL, postgres.Config{
		MaxAttempts:       cfg.MaxAttempts,
		RetryBackoff:      cfg.RetryBackoff,
		VisibilityTimeout: cfg.VisibilityTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgStore.Close()

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "agentplane-worker", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	backend := agentclient.New(cfg.BackendURL,
		agentclient.WithExecuteTimeout(cfg.ExecuteTimeout),
		agentclient.WithHealthTimeout(cfg.HealthTimeout),
	)

	disp := dispatcher.New(pgStore, pgStore, pgStore, backend, dispatcher.Config{
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: cfg.WorkerPollInterval,
		MaxBackoff:   cfg.WorkerMaxBackoff,
	}, slogger)

	log.Printf("Worker started with concurrency %d", cfg.WorkerConcurrency)
	go func() {
		if err := disp.Run(ctx); err != nil {
			log.Printf("Dispatcher stopped: %v", err)
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	// Start a dedicated metrics server on port 6162
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		log.Println("Worker metrics listening on :6162")
		if err := http.ListenAndServe(":6162", mux); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()

	// Wait for in-flight executions to finish.
	<-disp.Done()
}
