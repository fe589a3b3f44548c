// Package index implements the write side of the retrieval pipeline:
// normalize, embed, upsert. A document is either fully embedded and
// persisted or not persisted at all.
package index

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nordlys-labs/qfrm/internal/domain"
	"github.com/nordlys-labs/qfrm/internal/domain/batch"
	domcol "github.com/nordlys-labs/qfrm/internal/domain/collection"
	"github.com/nordlys-labs/qfrm/internal/domain/document"
	"github.com/nordlys-labs/qfrm/internal/retry"
)

// DefaultUpsertChunkSize bounds documents per store upsert call.
const DefaultUpsertChunkSize = 128

// Service indexes documents into vector store collections.
type Service struct {
	store    Store
	embedder domain.BatchEmbedder
	retry    retry.Policy
	// sem bounds in-flight store writes across all callers.
	sem       *semaphore.Weighted
	chunkSize int
	logger    *zap.Logger
}

// New creates an index service. concurrency bounds parallel store writes.
func New(
	store Store,
	embedder domain.BatchEmbedder,
	policy retry.Policy,
	concurrency int,
	logger *zap.Logger,
) *Service {
	if concurrency <= 0 {
		concurrency = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		embedder:  embedder,
		retry:     policy,
		sem:       semaphore.NewWeighted(int64(concurrency)),
		chunkSize: DefaultUpsertChunkSize,
		logger:    logger,
	}
}

// Index embeds one document and upserts it into the collection, replacing
// any existing document with the same identifier.
func (s *Service) Index(ctx context.Context, collection string, doc document.Document) error {
	col, err := s.describe(ctx, collection)
	if err != nil {
		return err
	}

	normalized := domain.Normalize(doc.Content())
	if normalized == "" {
		return fmt.Errorf("document %q has no embeddable content: %w", doc.ID(), domain.ErrInvalidInput)
	}

	var vector []float32
	err = s.retry.Do(ctx, func() error {
		res, embedErr := s.embedder.Embed(ctx, normalized)
		if embedErr != nil {
			return embedErr
		}
		vector = res.Embedding
		return nil
	})
	if err != nil {
		return fmt.Errorf("embed document %q: %w", doc.ID(), err)
	}
	if len(vector) != col.Dimension() {
		return fmt.Errorf(
			"document %q embedded to dimension %d, collection %q expects %d: %w",
			doc.ID(), len(vector), collection, col.Dimension(), domain.ErrVectorDimMismatch,
		)
	}

	if err := s.upsert(ctx, collection, []document.Document{doc.WithVector(vector)}); err != nil {
		return fmt.Errorf("upsert document %q: %w", doc.ID(), err)
	}
	return nil
}

// IndexBatch embeds and upserts documents, returning a per-document outcome
// in input order. Duplicate identifiers within the batch are rejected up
// front. An embedding backend failure fails every not-yet-persisted item.
func (s *Service) IndexBatch(
	ctx context.Context, collection string, docs []document.Document,
) ([]batch.Result, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	col, err := s.describe(ctx, collection)
	if err != nil {
		return nil, err
	}

	if dup := firstDuplicateID(docs); dup != "" {
		return nil, fmt.Errorf("duplicate document ID %q in batch: %w", dup, domain.ErrInvalidInput)
	}

	results := make([]batch.Result, len(docs))

	// Items with empty normalized content fail individually; the rest
	// proceed as one embed batch.
	var embedTexts []string
	var embedIdx []int
	for i := range docs {
		normalized := domain.Normalize(docs[i].Content())
		if normalized == "" {
			results[i] = batch.NewError(docs[i].ID(), fmt.Errorf(
				"no embeddable content: %w", domain.ErrInvalidInput,
			))
			continue
		}
		embedTexts = append(embedTexts, normalized)
		embedIdx = append(embedIdx, i)
	}
	if len(embedTexts) == 0 {
		return results, nil
	}

	var embedded domain.BatchEmbeddingResult
	err = s.retry.Do(ctx, func() error {
		var inner error
		embedded, inner = s.embedder.BatchEmbed(ctx, embedTexts)
		return inner
	})
	if err != nil {
		for _, i := range embedIdx {
			results[i] = batch.NewError(docs[i].ID(), fmt.Errorf("embed batch: %w", err))
		}
		return results, nil
	}

	pending := make([]document.Document, 0, len(embedIdx))
	pendingIdx := make([]int, 0, len(embedIdx))
	for j, i := range embedIdx {
		vector := embedded.Embeddings[j]
		if len(vector) != col.Dimension() {
			results[i] = batch.NewError(docs[i].ID(), fmt.Errorf(
				"embedded to dimension %d, collection expects %d: %w",
				len(vector), col.Dimension(), domain.ErrVectorDimMismatch,
			))
			continue
		}
		pending = append(pending, docs[i].WithVector(vector))
		pendingIdx = append(pendingIdx, i)
	}

	s.upsertChunked(ctx, collection, pending, pendingIdx, results)
	return results, nil
}

// Remove deletes documents by identifier. Missing identifiers are not an
// error; the operation is idempotent.
func (s *Service) Remove(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.describe(ctx, collection); err != nil {
		return err
	}

	err := s.retry.Do(ctx, func() error {
		return s.store.Delete(ctx, collection, ids)
	})
	if err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// upsertChunked writes pending documents in chunks, in parallel under the
// write semaphore, recording per-chunk outcomes into results.
func (s *Service) upsertChunked(
	ctx context.Context,
	collection string,
	pending []document.Document,
	pendingIdx []int,
	results []batch.Result,
) {
	g, gctx := errgroup.WithContext(ctx)

	for start := 0; start < len(pending); start += s.chunkSize {
		end := min(start+s.chunkSize, len(pending))
		chunk := pending[start:end]
		chunkIdx := pendingIdx[start:end]

		g.Go(func() error {
			err := s.upsert(gctx, collection, chunk)
			for j, i := range chunkIdx {
				if err != nil {
					results[i] = batch.NewError(chunk[j].ID(), fmt.Errorf("upsert: %w", err))
				} else {
					results[i] = batch.NewOK(chunk[j].ID())
				}
			}
			if err != nil {
				s.logger.Warn("batch upsert chunk failed",
					zap.String("collection", collection),
					zap.Int("chunk_size", len(chunk)),
					zap.Error(err))
			}
			// Chunk failures are reported per item, not as a group error.
			return nil
		})
	}

	_ = g.Wait()
}

func (s *Service) upsert(ctx context.Context, collection string, docs []document.Document) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire write slot: %w", err)
	}
	defer s.sem.Release(1)

	return s.retry.Do(ctx, func() error {
		return s.store.Upsert(ctx, collection, docs)
	})
}

func (s *Service) describe(ctx context.Context, name string) (domcol.Collection, error) {
	var col domcol.Collection
	err := s.retry.Do(ctx, func() error {
		var inner error
		col, inner = s.store.Describe(ctx, name)
		return inner
	})
	if err != nil {
		if errors.Is(err, domain.ErrCollectionNotFound) {
			return domcol.Collection{}, fmt.Errorf("collection %q: %w", name, err)
		}
		return domcol.Collection{}, fmt.Errorf("describe collection %q: %w", name, err)
	}
	return col, nil
}

func firstDuplicateID(docs []document.Document) string {
	seen := make(map[string]struct{}, len(docs))
	for i := range docs {
		id := docs[i].ID()
		if _, ok := seen[id]; ok {
			return id
		}
		seen[id] = struct{}{}
	}
	return ""
}
