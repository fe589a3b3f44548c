// Package openai is the embedding backend transport for OpenAI-compatible
// APIs. fastembed models (all-MiniLM-L6-v2 and friends) are served by
// local inference servers speaking the same protocol, so one transport
// covers both local and hosted backends.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/nordlys-labs/qfrm/internal/domain"
	"github.com/nordlys-labs/qfrm/internal/metrics"
)

// DefaultMaxBatchSize bounds texts per embed call when not configured.
const DefaultMaxBatchSize = 64

// Embedder is an embedding provider using the OpenAI-compatible API.
type Embedder struct {
	client       *openai.Client
	model        openai.EmbeddingModel
	dimensions   int
	maxBatchSize int
	provider     string
	logger       *zap.Logger
}

// Config holds the embedding backend settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	// MaxBatchSize is the maximum number of texts per backend call; larger
	// batches are split into sequential calls with order preserved.
	MaxBatchSize int
	Provider     string
	Logger       *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding backend.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	maxBatch := cfg.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        openai.EmbeddingModel(cfg.Model),
		dimensions:   cfg.Dimensions,
		maxBatchSize: maxBatch,
		provider:     cfg.Provider,
		logger:       logger,
	}
}

// Embed implements domain.Embedder for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed vectorizes texts, returning one vector per input in input
// order. Batches over MaxBatchSize are split into sequential backend calls;
// a failing call is reported with its batch index.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	for i, t := range texts {
		if t == "" {
			return domain.BatchEmbeddingResult{}, fmt.Errorf(
				"empty content at index %d: %w", i, domain.ErrInvalidInput,
			)
		}
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}

	for batchIdx, start := 0, 0; start < len(texts); batchIdx, start = batchIdx+1, start+e.maxBatchSize {
		end := min(start+e.maxBatchSize, len(texts))

		vectors, prompt, total, err := e.embedChunk(ctx, texts[start:end])
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("embed batch %d: %w", batchIdx, err)
		}

		out.Embeddings = append(out.Embeddings, vectors...)
		out.PromptTokens += prompt
		out.TotalTokens += total
	}

	return out, nil
}

// embedChunk issues one backend call for at most MaxBatchSize texts.
func (e *Embedder) embedChunk(ctx context.Context, texts []string) ([][]float32, int, int, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()

	resp, err := e.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "api_error").Inc()
		return nil, 0, 0, parseAPIError(err)
	}

	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "malformed_response").Inc()
		return nil, 0, 0, fmt.Errorf(
			"got %d embeddings for %d inputs: %w",
			len(resp.Data), len(texts), domain.ErrEmbeddingBackend,
		)
	}

	// The API may return data out of order; the Index field is authoritative.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, 0, 0, fmt.Errorf(
				"embedding index %d out of range: %w", d.Index, domain.ErrEmbeddingBackend,
			)
		}
		if e.dimensions > 0 && len(d.Embedding) != e.dimensions {
			metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "wrong_dimension").Inc()
			return nil, 0, 0, fmt.Errorf(
				"embedding %d has dimension %d, want %d: %w",
				d.Index, len(d.Embedding), e.dimensions, domain.ErrEmbeddingBackend,
			)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, 0, 0, fmt.Errorf(
				"missing embedding for input %d: %w", i, domain.ErrEmbeddingBackend,
			)
		}
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, string(e.model)).Observe(duration.Seconds())

	totalTokens := resp.Usage.TotalTokens
	promptTokens := resp.Usage.PromptTokens
	if totalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "prompt").Add(float64(promptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "total").Add(float64(totalTokens))
	}

	return vectors, promptTokens, totalTokens, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrEmbeddingBackend for retry
// classification and 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingBackend

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body
// (TEI/Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
