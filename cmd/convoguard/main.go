package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/convoguard/convoguard/internal/api"
	"github.com/convoguard/convoguard/pkg/config"
	"github.com/convoguard/convoguard/pkg/governor"
	"github.com/convoguard/convoguard/pkg/logging"
	"github.com/convoguard/convoguard/pkg/metrics"
	"github.com/convoguard/convoguard/pkg/resilience"
	"github.com/convoguard/convoguard/pkg/store"
	"github.com/convoguard/convoguard/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logging
	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "convoguard",
		Version:     "1.0.0",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logging.SetGlobalLogger(logger)

	// Initialize metrics
	m := metrics.NewMetrics(&metrics.Config{
		Namespace: cfg.Metrics.Namespace,
		Enabled:   cfg.Metrics.Enabled,
	})
	if cfg.Metrics.Enabled {
		if err := m.Register(prometheus.DefaultRegisterer); err != nil {
			log.Fatalf("Failed to register metrics: %v", err)
		}
	}

	// Initialize tracing
	tracer, err := tracing.NewService(&tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Tracing.Environment,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(ctx); err != nil {
			logger.Error("Tracing shutdown failed", "error", err)
		}
	}()

	// Initialize the shared counter store
	counterStore, err := store.NewRedisStore(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer counterStore.Close()

	logger.Info("Redis connection established",
		"host", cfg.Redis.Host,
		"port", cfg.Redis.Port,
	)

	// Alerting: breaker openings and abuse cooldowns land in the log stream;
	// deployments add webhook handlers here.
	alerts := resilience.NewAlertManager(logger)
	alerts.AddHandler(resilience.NewLoggingAlertHandler(logger))

	// Breaker registry and governor
	breakers := resilience.NewBreakerRegistry(logger, m, alerts)
	gov := governor.New(counterStore, &governor.Config{
		MinuteLimit:   cfg.Governor.MinuteLimit,
		HourlyLimit:   cfg.Governor.HourlyLimit,
		SpamCooldown:  cfg.Governor.SpamCooldown,
		AbuseCooldown: cfg.Governor.AbuseCooldown,
		KeyPrefix:     cfg.Governor.KeyPrefix,
	}, logger, m, alerts)

	router := api.NewRouter(api.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Store:    counterStore,
		Breakers: breakers,
		Governor: gov,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting ops server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
