// Package main is the entry point for the agentplane controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agentplane/internal/agentclient"
	"agentplane/internal/cache"
	"agentplane/internal/config"
	"agentplane/internal/controller"
	"agentplane/internal/dispatcher"
	"agentplane/internal/logger"
	"agentplane/internal/observability"
	"agentplane/internal/ratelimit"
	"agentplane/internal/store/postgres"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

func main() {
	// Parse flags
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New(cfg.LogLevel)

	// Setup Database
	ctx := context.Background()
	pgStore, err := postgres.New(ctx, cfg.DatabaseURL, postgres.Config{
		MaxAttempts:       cfg.MaxAttempts,
		RetryBackoff:      cfg.RetryBackoff,
		VisibilityTimeout: cfg.VisibilityTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgStore.Close()

	// Run migrations if requested
	if *migrateFlag {
		log.Println("Running database migrations...")
		if err := postgres.Migrate(pgStore.DB()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	}

	// Redis backs the rate limiter and the read cache. The controller still
	// serves traffic if it is down: the limiter fails open and cache misses
	// fall through to Postgres.
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "agentplane-controller", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
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

	// Use an Observable Gauge (Async) that queries the DB only when scraped.
	meter := otel.Meter("agentplane-controller")
	_, err = meter.Int64ObservableGauge("agentplane.queue.depth",
		metric.WithDescription("Current number of executions in the queue"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			count, err := pgStore.Count(ctx)
			if err != nil {
				log.Printf("Failed to count queue depth: %v", err)
				return nil // Don't crash metrics scrape on DB error
			}
			obs.Observe(count)
			return nil
		}),
	)
	if err != nil {
		log.Printf("Failed to register queue depth metric: %v", err)
	}

	backend := agentclient.New(cfg.BackendURL,
		agentclient.WithExecuteTimeout(cfg.ExecuteTimeout),
		agentclient.WithHealthTimeout(cfg.HealthTimeout),
	)

	// The controller only submits; workers run the queue pull-loop.
	disp := dispatcher.New(pgStore, pgStore, pgStore, backend, dispatcher.Config{
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: cfg.WorkerPollInterval,
		MaxBackoff:   cfg.WorkerMaxBackoff,
	}, slogger)

	// Start Server
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(addr, pgStore, controller.Options{
		Dispatcher:      disp,
		Cache:           cache.New(redisClient, cfg.CacheTTL, slogger),
		Backend:         backend,
		Limiter:         ratelimit.New(ratelimit.NewRedisCounter(redisClient), slogger),
		RateLimitWindow: cfg.RateLimitWindow,
		RateLimitMax:    cfg.RateLimitMax,
		Metrics:         metricsHandler,
	})

	go func() {
		log.Printf("AgentPlane Controller starting on %s", addr)
		if err := srv.Run(ctx); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down controller...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited properly")
}
