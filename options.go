package qfrm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nordlys-labs/qfrm/internal/retry"
)

// Embedder is the public contract for plugging a custom embedding backend
// into the client. BatchEmbed must return one vector per input, in input
// order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	qdrantEndpoint string
	qdrantAPIKey   string
	qdrantTimeout  time.Duration
	memoryStore    bool

	embeddingBaseURL string
	embeddingAPIKey  string
	embeddingModel   string
	dimensions       int
	maxBatchSize     int
	customEmbedder   Embedder

	cacheCapacity int
	cacheDisabled bool

	retryPolicy retry.Policy
	concurrency int
	logger      *zap.Logger
}

// WithQdrant connects the client to a qdrant-compatible vector store.
func WithQdrant(endpoint string) Option {
	return func(c *clientConfig) { c.qdrantEndpoint = endpoint }
}

// WithQdrantAPIKey sets the store API key.
func WithQdrantAPIKey(key string) Option {
	return func(c *clientConfig) { c.qdrantAPIKey = key }
}

// WithQdrantTimeout sets the per-request store timeout.
func WithQdrantTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.qdrantTimeout = d }
}

// WithMemoryStore uses an in-process store instead of a remote one.
// Intended for tests and prototyping; nothing survives a restart.
func WithMemoryStore() Option {
	return func(c *clientConfig) { c.memoryStore = true }
}

// WithOpenAIEmbedding configures an OpenAI-compatible embedding backend
// (hosted APIs or local fastembed-style inference servers).
func WithOpenAIEmbedding(baseURL, apiKey, model string) Option {
	return func(c *clientConfig) {
		c.embeddingBaseURL = baseURL
		c.embeddingAPIKey = apiKey
		c.embeddingModel = model
	}
}

// WithDimensions sets the expected embedding dimension.
func WithDimensions(dim int) Option {
	return func(c *clientConfig) { c.dimensions = dim }
}

// WithMaxBatchSize bounds texts per embedding backend call.
func WithMaxBatchSize(n int) Option {
	return func(c *clientConfig) { c.maxBatchSize = n }
}

// WithEmbedder plugs in a custom embedding backend instead of the
// OpenAI-compatible transport.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) { c.customEmbedder = e }
}

// WithCacheCapacity sets the embedding LRU cache capacity.
func WithCacheCapacity(n int) Option {
	return func(c *clientConfig) { c.cacheCapacity = n }
}

// WithoutCache disables the embedding cache.
func WithoutCache() Option {
	return func(c *clientConfig) { c.cacheDisabled = true }
}

// WithRetry overrides the retry policy for store and embedding calls.
func WithRetry(maxAttempts int, initialBackoff, maxBackoff time.Duration) Option {
	return func(c *clientConfig) {
		c.retryPolicy = retry.Policy{
			MaxAttempts:    maxAttempts,
			InitialBackoff: initialBackoff,
			MaxBackoff:     maxBackoff,
		}
	}
}

// WithConcurrency bounds parallel store calls.
func WithConcurrency(n int) Option {
	return func(c *clientConfig) { c.concurrency = n }
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}
