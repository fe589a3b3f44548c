// Package search implements the read side of the retrieval pipeline:
// embed the query once, fan out to the target collections, merge ranked.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nordlys-labs/qfrm/internal/domain"
	domcol "github.com/nordlys-labs/qfrm/internal/domain/collection"
	"github.com/nordlys-labs/qfrm/internal/domain/query"
	"github.com/nordlys-labs/qfrm/internal/domain/result"
	"github.com/nordlys-labs/qfrm/internal/retry"
)

// Service answers similarity queries against one or more collections.
type Service struct {
	store    Store
	embedder domain.Embedder
	retry    retry.Policy
	// sem bounds in-flight store queries across all callers.
	sem    *semaphore.Weighted
	logger *zap.Logger
}

// New creates a search service. concurrency bounds parallel store queries.
func New(
	store Store,
	embedder domain.Embedder,
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
		store:    store,
		embedder: embedder,
		retry:    policy,
		sem:      semaphore.NewWeighted(int64(concurrency)),
		logger:   logger,
	}
}

// Search embeds the query and returns the topK best hits from the
// collection. Fewer than topK hits is not an error.
func (s *Service) Search(ctx context.Context, collection string, q query.Query) ([]result.Result, error) {
	return s.searchCollections(ctx, []string{collection}, q)
}

// SearchMany embeds the query once and fans it out to every collection,
// merging the per-collection rankings into a single topK list. All target
// collections must share dimension and metric; a mismatch fails the whole
// query before any store call.
func (s *Service) SearchMany(ctx context.Context, collections []string, q query.Query) ([]result.Result, error) {
	if len(collections) == 0 {
		return nil, fmt.Errorf("no collections given: %w", domain.ErrInvalidInput)
	}
	if dup := firstDuplicate(collections); dup != "" {
		return nil, fmt.Errorf("collection %q listed twice: %w", dup, domain.ErrInvalidInput)
	}
	return s.searchCollections(ctx, collections, q)
}

func (s *Service) searchCollections(
	ctx context.Context, collections []string, q query.Query,
) ([]result.Result, error) {
	cols, err := s.describeAll(ctx, collections)
	if err != nil {
		return nil, err
	}
	if err := sameShape(collections, cols); err != nil {
		return nil, err
	}

	normalized := domain.Normalize(q.Content())
	if normalized == "" {
		return nil, fmt.Errorf("query has no embeddable content: %w", domain.ErrInvalidInput)
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
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) != cols[0].Dimension() {
		return nil, fmt.Errorf(
			"query embedded to dimension %d, collections expect %d: %w",
			len(vector), cols[0].Dimension(), domain.ErrVectorDimMismatch,
		)
	}

	lists := make([][]result.Result, len(collections))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range collections {
		i, name := i, name
		g.Go(func() error {
			hits, queryErr := s.queryOne(gctx, name, vector, q)
			if queryErr != nil {
				return fmt.Errorf("query collection %q: %w", name, queryErr)
			}
			lists[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(lists) == 1 {
		return lists[0], nil
	}
	return mergeRanked(lists, cols[0].Metric(), q.TopK()), nil
}

func (s *Service) queryOne(
	ctx context.Context, collection string, vector []float32, q query.Query,
) ([]result.Result, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire query slot: %w", err)
	}
	defer s.sem.Release(1)

	var hits []result.Result
	err := s.retry.Do(ctx, func() error {
		var inner error
		hits, inner = s.store.Query(ctx, collection, vector, q.TopK(), q.Filter(), q.IncludeVectors())
		return inner
	})
	return hits, err
}

func (s *Service) describeAll(ctx context.Context, names []string) ([]domcol.Collection, error) {
	cols := make([]domcol.Collection, len(names))
	for i, name := range names {
		err := s.retry.Do(ctx, func() error {
			var inner error
			cols[i], inner = s.store.Describe(ctx, name)
			return inner
		})
		if err != nil {
			return nil, fmt.Errorf("describe collection %q: %w", name, err)
		}
	}
	return cols, nil
}

// sameShape rejects fan-out across collections whose scores would not be
// comparable: every target must share the first one's dimension and metric.
func sameShape(names []string, cols []domcol.Collection) error {
	for i := 1; i < len(cols); i++ {
		if cols[i].Dimension() != cols[0].Dimension() || cols[i].Metric() != cols[0].Metric() {
			return fmt.Errorf(
				"collection %q has dimension=%d metric=%s, collection %q has dimension=%d metric=%s: %w",
				names[0], cols[0].Dimension(), cols[0].Metric(),
				names[i], cols[i].Dimension(), cols[i].Metric(),
				domain.ErrInvalidInput,
			)
		}
	}
	return nil
}

func firstDuplicate(names []string) string {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			return n
		}
		seen[n] = struct{}{}
	}
	return ""
}
