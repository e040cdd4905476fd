// cmd/assessment-engine/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/SarthakGarg19/social-support-ai/internal/api"
	"github.com/SarthakGarg19/social-support-ai/internal/checkpoint"
	"github.com/SarthakGarg19/social-support-ai/internal/common/aws"
	"github.com/SarthakGarg19/social-support-ai/internal/common/config"
	"github.com/SarthakGarg19/social-support-ai/internal/common/database"
	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
	"github.com/SarthakGarg19/social-support-ai/internal/common/observability"
	"github.com/SarthakGarg19/social-support-ai/internal/providers"
	"github.com/SarthakGarg19/social-support-ai/internal/workflow"
	"github.com/SarthakGarg19/social-support-ai/pkg/registry"

	checkeligibility "github.com/SarthakGarg19/social-support-ai/internal/stages/check-eligibility"
	extractdocuments "github.com/SarthakGarg19/social-support-ai/internal/stages/extract-documents"
	finalizedecision "github.com/SarthakGarg19/social-support-ai/internal/stages/finalize-decision"
	generaterecommendations "github.com/SarthakGarg19/social-support-ai/internal/stages/generate-recommendations"
	validatedata "github.com/SarthakGarg19/social-support-ai/internal/stages/validate-data"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting assessment engine...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("assessment-engine")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		// Test the connection
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init AWS notification clients (optional) ---
	var sesClient finalizedecision.SESService
	var snsClient finalizedecision.SNSService
	if cfg.Notifications.Email.Enabled {
		client, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("SES client initialization failed", zap.Error(err))
		}
		sesClient = client
	}
	if cfg.Notifications.SMS.Enabled {
		client, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("SNS client initialization failed", zap.Error(err))
		}
		snsClient = client
	}

	// --- Capability providers ---
	extraction := providers.NewHTTPExtraction(providers.HTTPExtractionConfig{
		BaseURL:    cfg.Providers.Extraction.BaseURL,
		APIKey:     cfg.Providers.Extraction.APIKey,
		Timeout:    config.GetDuration(cfg.Providers.Extraction.Timeout),
		MaxRetries: cfg.Providers.Extraction.MaxRetries,
	}, log)

	narrator := providers.NewOpenAINarrator(providers.OpenAINarratorConfig{
		APIKey:    cfg.Providers.Narration.APIKey,
		BaseURL:   cfg.Providers.Narration.BaseURL,
		Model:     cfg.Providers.Narration.Model,
		MaxTokens: cfg.Providers.Narration.MaxTokens,
		Timeout:   config.GetDuration(cfg.Providers.Narration.Timeout),
	}, log)

	retriever := providers.NewESKnowledge(providers.ESKnowledgeConfig{
		Index:    cfg.Providers.Knowledge.Index,
		Timeout:  config.GetDuration(cfg.Providers.Knowledge.Timeout),
		CacheTTL: time.Duration(cfg.Providers.Knowledge.CacheTTL) * time.Second,
	}, esClient.Client, log)

	zapLog.Info("All capability providers initialized")

	// --- Program catalog ---
	catalog := registry.LoadRegistryOrDefault(cfg.Recommendation.CatalogPath)
	zapLog.Info("Program catalog loaded", zap.Int("programs", len(catalog.Programs)))

	// --- Checkpointing ---
	store := checkpoint.NewPostgresStore(pg.GetDB())
	cache := checkpoint.NewStateCache(redis.GetClient())
	checkpointer := checkpoint.NewCheckpointer(
		store,
		cache,
		cfg.Workflow.CheckpointRetries,
		config.GetDuration(cfg.Workflow.CheckpointInterval),
		log,
	)

	// --- Stage handlers ---
	finalizeHandler, err := finalizedecision.NewHandler(
		finalizedecision.LoadConfig(cfg), pg.GetDB(), sesClient, snsClient, log,
	)
	if err != nil {
		zapLog.Fatal("failed to create finalize-decision handler", zap.Error(err))
	}

	handlers := workflow.Handlers{
		Extract:     extractdocuments.NewHandler(extractdocuments.LoadConfig(cfg), extraction, log),
		Validate:    validatedata.NewHandler(validatedata.LoadConfig(cfg), log),
		Eligibility: checkeligibility.NewHandler(checkeligibility.LoadConfig(cfg), narrator, retriever, log),
		Recommend:   generaterecommendations.NewHandler(generaterecommendations.LoadConfig(cfg), catalog, narrator, log),
		Finalize:    finalizeHandler,
	}

	orchestrator := workflow.NewOrchestrator(cfg, handlers, checkpointer, obs, log)
	zapLog.Info("All 5 stage handlers registered successfully")

	// --- API, Health & Metrics Server ---
	mux := http.NewServeMux()
	api.NewServer(orchestrator, checkpointer, log).Register(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := "ready"
		code := http.StatusOK
		if err := pg.Ping(r.Context()); err != nil {
			status = "not ready"
			code = http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: ":8080", Handler: mux}
	go func() {
		zapLog.Info("API/Health/Metrics server listening on :8080")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("API server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping engine...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down API server", zap.Error(err))
	}

	zapLog.Info("Assessment engine stopped gracefully")
}
