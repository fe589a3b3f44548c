package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nordlys-labs/qfrm/internal/config"
	"github.com/nordlys-labs/qfrm/internal/domain"
	"github.com/nordlys-labs/qfrm/internal/embcache"
	logpkg "github.com/nordlys-labs/qfrm/internal/logger"
	"github.com/nordlys-labs/qfrm/internal/metrics"
	"github.com/nordlys-labs/qfrm/internal/retry"
	"github.com/nordlys-labs/qfrm/internal/store/qdrant"
	chiTransport "github.com/nordlys-labs/qfrm/internal/transport/chi"
	openaiEmb "github.com/nordlys-labs/qfrm/internal/transport/openai"
	collectionuc "github.com/nordlys-labs/qfrm/internal/usecase/collection"
	healthuc "github.com/nordlys-labs/qfrm/internal/usecase/health"
	indexuc "github.com/nordlys-labs/qfrm/internal/usecase/index"
	searchuc "github.com/nordlys-labs/qfrm/internal/usecase/search"
	"github.com/nordlys-labs/qfrm/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting qfrm API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("store_endpoint", cfg.Store.Endpoint),
		zap.String("embedding_model", cfg.Embedding.Model),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterStoreMetrics()

	// Vector store
	store, err := qdrant.New(qdrant.Config{
		Endpoint: cfg.Store.Endpoint,
		APIKey:   cfg.Store.APIKey,
		Timeout:  time.Duration(cfg.Store.TimeoutSec) * time.Second,
		MaxConns: cfg.Store.Concurrency,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Failed to create vector store client", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		// Degraded start: the store may come up later; health reports it.
		logger.Warn("Vector store not reachable at startup", zap.Error(err))
	} else {
		logger.Info("Connected to vector store")
	}

	// Embedder chain — composition root
	embedder := buildEmbedder(cfg, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	policy := retry.Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Retry.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Retry.MaxBackoffMS) * time.Millisecond,
	}

	// Use case services
	collSvc := collectionuc.New(store, policy)
	indexSvc := indexuc.New(store, embedder, policy, cfg.Store.Concurrency, logger)
	searchSvc := searchuc.New(store, embedder, policy, cfg.Store.Concurrency, logger)
	healthSvc := healthuc.New(store, embeddingHealthChecker(embedder), logger)

	// Chi server
	server := chiTransport.NewServer(collSvc, indexSvc, searchSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the embedder chain: OpenAI-compatible transport -> LRU cache.
func buildEmbedder(cfg config.Config, logger *zap.Logger) domain.BatchEmbedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:       cfg.Embedding.APIKey,
		BaseURL:      cfg.Embedding.BaseURL,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
		MaxBatchSize: cfg.Embedding.BatchSize,
		Provider:     cfg.Embedding.Provider,
		Logger:       logger,
	})

	cached, err := embcache.New(base, cfg.Embedding.CacheCapacity, metrics.EmbeddingCacheTotal, logger)
	if err != nil {
		logger.Fatal("Failed to create embedding cache", zap.Error(err))
	}
	return cached
}

// embeddingHealthChecker extracts the HealthChecker from the embedder chain.
func embeddingHealthChecker(embedder domain.BatchEmbedder) domain.HealthChecker {
	if hc, ok := embedder.(domain.HealthChecker); ok {
		return hc
	}
	return nil
}
