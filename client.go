// Package qfrm is an embedding and vector retrieval toolkit: it pairs an
// embedding backend with a qdrant-compatible vector store and exposes
// index and search pipelines on top of both.
package qfrm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nordlys-labs/qfrm/internal/domain"
	domdoc "github.com/nordlys-labs/qfrm/internal/domain/document"
	"github.com/nordlys-labs/qfrm/internal/domain/metric"
	"github.com/nordlys-labs/qfrm/internal/domain/query"
	"github.com/nordlys-labs/qfrm/internal/embcache"
	"github.com/nordlys-labs/qfrm/internal/metrics"
	"github.com/nordlys-labs/qfrm/internal/retry"
	"github.com/nordlys-labs/qfrm/internal/store"
	"github.com/nordlys-labs/qfrm/internal/store/memory"
	"github.com/nordlys-labs/qfrm/internal/store/qdrant"
	openaiEmb "github.com/nordlys-labs/qfrm/internal/transport/openai"
	collectionuc "github.com/nordlys-labs/qfrm/internal/usecase/collection"
	indexuc "github.com/nordlys-labs/qfrm/internal/usecase/index"
	searchuc "github.com/nordlys-labs/qfrm/internal/usecase/search"
)

// Sentinel errors surfaced by the client. Use errors.Is.
var (
	ErrInvalidInput       = domain.ErrInvalidInput
	ErrCollectionNotFound = domain.ErrCollectionNotFound
	ErrCollectionConflict = domain.ErrCollectionConflict
	ErrVectorDimMismatch  = domain.ErrVectorDimMismatch
	ErrEmbeddingBackend   = domain.ErrEmbeddingBackend
	ErrStoreUnavailable   = domain.ErrStoreUnavailable
)

// SearchRequest is a similarity search.
type SearchRequest struct {
	Query          string
	TopK           int
	Filter         Filter
	IncludeVectors bool
}

// Client is the qfrm SDK entry point.
type Client struct {
	store       store.Store
	collections *collectionuc.Service
	index       *indexuc.Service
	search      *searchuc.Service
}

// New creates a qfrm Client.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		retryPolicy: retry.Default,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	st, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &Client{
		store:       st,
		collections: collectionuc.New(st, cfg.retryPolicy),
		index:       indexuc.New(st, embedder, cfg.retryPolicy, cfg.concurrency, cfg.logger),
		search:      searchuc.New(st, embedder, cfg.retryPolicy, cfg.concurrency, cfg.logger),
	}, nil
}

func createStore(cfg *clientConfig) (store.Store, error) {
	if cfg.memoryStore {
		return memory.New(), nil
	}
	if cfg.qdrantEndpoint == "" {
		return nil, errors.New("qfrm: store required (use WithQdrant or WithMemoryStore)")
	}
	st, err := qdrant.New(qdrant.Config{
		Endpoint: cfg.qdrantEndpoint,
		APIKey:   cfg.qdrantAPIKey,
		Timeout:  cfg.qdrantTimeout,
		MaxConns: cfg.concurrency,
		Logger:   cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("qfrm: create qdrant store: %w", err)
	}
	return st, nil
}

// buildEmbedder assembles the embedding chain: backend transport wrapped
// in the LRU cache unless caching is disabled.
func buildEmbedder(cfg *clientConfig) (domain.BatchEmbedder, error) {
	var base domain.BatchEmbedder
	switch {
	case cfg.customEmbedder != nil:
		base = &embedderAdapter{inner: cfg.customEmbedder}
	case cfg.embeddingBaseURL != "" || cfg.embeddingAPIKey != "":
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:       cfg.embeddingAPIKey,
			BaseURL:      cfg.embeddingBaseURL,
			Model:        cfg.embeddingModel,
			Dimensions:   cfg.dimensions,
			MaxBatchSize: cfg.maxBatchSize,
			Provider:     "openai",
			Logger:       cfg.logger,
		})
	default:
		return nil, errors.New(
			"qfrm: embedder required (use WithOpenAIEmbedding or WithEmbedder)",
		)
	}

	if cfg.cacheDisabled {
		return base, nil
	}
	cached, err := embcache.New(base, cfg.cacheCapacity, metrics.EmbeddingCacheTotal, cfg.logger)
	if err != nil {
		return nil, fmt.Errorf("qfrm: create embedding cache: %w", err)
	}
	return cached, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks vector store connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// EnsureCollection creates the collection if absent (idempotent). An
// existing collection with a different dimension or metric fails with
// ErrCollectionConflict.
func (c *Client) EnsureCollection(
	ctx context.Context, name string, dimension int, m Metric,
) (Collection, error) {
	col, err := c.collections.Ensure(ctx, name, dimension, metric.Metric(m))
	if err != nil {
		return Collection{}, err
	}
	return collectionFromDomain(col), nil
}

// DescribeCollection returns the collection as the store reports it.
func (c *Client) DescribeCollection(ctx context.Context, name string) (Collection, error) {
	col, err := c.collections.Describe(ctx, name)
	if err != nil {
		return Collection{}, err
	}
	return collectionFromDomain(col), nil
}

// DropCollection removes the collection and all its documents. Dropping a
// missing collection succeeds.
func (c *Client) DropCollection(ctx context.Context, name string) error {
	return c.collections.Drop(ctx, name)
}

// Index embeds and upserts one document, replacing any existing document
// with the same ID.
func (c *Client) Index(ctx context.Context, collection string, doc Document) error {
	d, err := documentToDomain(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return c.index.Index(ctx, collection, d)
}

// IndexBatch embeds and upserts documents, returning a per-document
// outcome in input order.
func (c *Client) IndexBatch(
	ctx context.Context, collection string, docs []Document,
) ([]BatchResult, error) {
	domDocs := make([]domdoc.Document, 0, len(docs))
	for i, d := range docs {
		doc, err := documentToDomain(d)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w: %w", i, ErrInvalidInput, err)
		}
		domDocs = append(domDocs, doc)
	}

	results, err := c.index.IndexBatch(ctx, collection, domDocs)
	if err != nil {
		return nil, err
	}

	out := make([]BatchResult, len(results))
	for i, r := range results {
		out[i] = batchResultFromDomain(r)
	}
	return out, nil
}

// Remove deletes documents by ID. Missing IDs are not an error.
func (c *Client) Remove(ctx context.Context, collection string, ids []string) error {
	return c.index.Remove(ctx, collection, ids)
}

// Search embeds the query and returns the best hits from the collection.
func (c *Client) Search(ctx context.Context, collection string, req SearchRequest) ([]Result, error) {
	q, err := searchQuery(req)
	if err != nil {
		return nil, err
	}
	hits, err := c.search.Search(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	return resultsFromDomain(hits), nil
}

// SearchMany embeds the query once and fans it out to every collection,
// merging the rankings. All collections must share dimension and metric.
func (c *Client) SearchMany(
	ctx context.Context, collections []string, req SearchRequest,
) ([]Result, error) {
	q, err := searchQuery(req)
	if err != nil {
		return nil, err
	}
	hits, err := c.search.SearchMany(ctx, collections, q)
	if err != nil {
		return nil, err
	}
	return resultsFromDomain(hits), nil
}

func searchQuery(req SearchRequest) (query.Query, error) {
	f, err := filterToDomain(req.Filter)
	if err != nil {
		return query.Query{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	q, err := query.New(req.Query, req.TopK, f, req.IncludeVectors)
	if err != nil {
		return query.Query{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return q, nil
}

// embedderAdapter wraps the public Embedder to satisfy domain.BatchEmbedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	vec, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingBackend, err)
	}
	return domain.EmbeddingResult{Embedding: vec}, nil
}

func (a *embedderAdapter) BatchEmbed(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	vecs, err := a.inner.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"batch embed: %w: %w", domain.ErrEmbeddingBackend, err,
		)
	}
	if len(vecs) != len(texts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"got %d embeddings for %d inputs: %w", len(vecs), len(texts), domain.ErrEmbeddingBackend,
		)
	}
	return domain.BatchEmbeddingResult{Embeddings: vecs}, nil
}
