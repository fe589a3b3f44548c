// Command qfrm-ingest bulk-loads a JSONL dataset into a collection.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/nordlys-labs/qfrm/internal/config"
	"github.com/nordlys-labs/qfrm/internal/domain/metric"
	"github.com/nordlys-labs/qfrm/internal/embcache"
	"github.com/nordlys-labs/qfrm/internal/ingest"
	logpkg "github.com/nordlys-labs/qfrm/internal/logger"
	"github.com/nordlys-labs/qfrm/internal/metrics"
	"github.com/nordlys-labs/qfrm/internal/retry"
	"github.com/nordlys-labs/qfrm/internal/store/qdrant"
	openaiEmb "github.com/nordlys-labs/qfrm/internal/transport/openai"
	collectionuc "github.com/nordlys-labs/qfrm/internal/usecase/collection"
	indexuc "github.com/nordlys-labs/qfrm/internal/usecase/index"
)

func main() {
	var (
		collection   = flag.String("collection", "", "target collection name (required)")
		file         = flag.String("file", "", "JSONL file path, '-' for stdin (required)")
		contentField = flag.String("content-field", "description", "JSON field holding the embeddable text")
		distance     = flag.String("metric", "cosine", "distance metric for a newly created collection")
		batchSize    = flag.Int("batch-size", ingest.DefaultBatchSize, "documents per index batch")
	)
	flag.Parse()

	env := config.GetEnv()
	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if *collection == "" || *file == "" {
		logger.Fatal("Both -collection and -file are required")
	}

	m, err := metric.Parse(*distance)
	if err != nil {
		logger.Fatal("Invalid metric", zap.Error(err))
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterStoreMetrics()

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

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:       cfg.Embedding.APIKey,
		BaseURL:      cfg.Embedding.BaseURL,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
		MaxBatchSize: cfg.Embedding.BatchSize,
		Provider:     cfg.Embedding.Provider,
		Logger:       logger,
	})
	embedder, err := embcache.New(base, cfg.Embedding.CacheCapacity, metrics.EmbeddingCacheTotal, logger)
	if err != nil {
		logger.Fatal("Failed to create embedding cache", zap.Error(err))
	}

	policy := retry.Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Retry.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Retry.MaxBackoffMS) * time.Millisecond,
	}

	ctx := context.Background()

	collSvc := collectionuc.New(store, policy)
	if _, err := collSvc.Ensure(ctx, *collection, cfg.Embedding.Dimensions, m); err != nil {
		logger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	indexSvc := indexuc.New(store, embedder, policy, cfg.Store.Concurrency, logger)
	loader := ingest.NewLoader(indexSvc, ingest.Config{
		ContentField: *contentField,
		BatchSize:    *batchSize,
		Logger:       logger,
	})

	in := os.Stdin
	if *file != "-" {
		in, err = os.Open(*file)
		if err != nil {
			logger.Fatal("Failed to open input", zap.Error(err))
		}
		defer func() { _ = in.Close() }()
	}

	stats, err := loader.Load(ctx, *collection, in)
	if err != nil {
		logger.Fatal("Ingest failed",
			zap.Int("read", stats.Read),
			zap.Int("indexed", stats.Indexed),
			zap.Error(err))
	}

	logger.Info("Ingest complete",
		zap.String("collection", *collection),
		zap.Int("read", stats.Read),
		zap.Int("indexed", stats.Indexed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
}
