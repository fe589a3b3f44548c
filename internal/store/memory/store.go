// Package memory is an in-process vector store with exact (brute-force)
// scoring. It backs the test suite and local use without network access;
// it is not an ANN index.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/nordlys-labs/qfrm/internal/domain"
	"github.com/nordlys-labs/qfrm/internal/domain/collection"
	"github.com/nordlys-labs/qfrm/internal/domain/document"
	"github.com/nordlys-labs/qfrm/internal/domain/metric"
	"github.com/nordlys-labs/qfrm/internal/domain/query"
	"github.com/nordlys-labs/qfrm/internal/domain/result"
	"github.com/nordlys-labs/qfrm/internal/store"
)

type memCollection struct {
	col  collection.Collection
	docs map[string]document.Document
}

// Store keeps collections and documents in process memory.
// Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

var _ store.Store = (*Store)(nil)

// New creates an empty memory store.
func New() *Store {
	return &Store{collections: make(map[string]*memCollection)}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// Create creates a collection. Creating an existing collection fails with
// a conflict.
func (s *Store) Create(_ context.Context, col collection.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[col.Name()]; ok {
		return &store.Error{
			Op: store.OpCreateCollection, Collection: col.Name(),
			Err: domain.ErrCollectionConflict,
		}
	}
	s.collections[col.Name()] = &memCollection{
		col:  col,
		docs: make(map[string]document.Document),
	}
	return nil
}

// Describe returns the collection's declared dimension and metric.
func (s *Store) Describe(_ context.Context, name string) (collection.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mc, ok := s.collections[name]
	if !ok {
		return collection.Collection{}, &store.Error{
			Op: store.OpDescribe, Collection: name,
			Err: domain.ErrCollectionNotFound,
		}
	}
	return mc.col, nil
}

// Drop removes a collection. Dropping a missing collection succeeds.
func (s *Store) Drop(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

// Count returns the number of documents in a collection.
func (s *Store) Count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if mc, ok := s.collections[name]; ok {
		return len(mc.docs)
	}
	return 0
}

// Upsert inserts or replaces documents by identifier.
func (s *Store) Upsert(_ context.Context, collectionName string, docs []document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mc, ok := s.collections[collectionName]
	if !ok {
		return &store.Error{
			Op: store.OpUpsert, Collection: collectionName,
			Err: domain.ErrCollectionNotFound,
		}
	}
	for i := range docs {
		if len(docs[i].Vector()) != mc.col.Dimension() {
			return &store.Error{
				Op: store.OpUpsert, Collection: collectionName,
				Err: fmt.Errorf(
					"document %q: got %d, want %d: %w",
					docs[i].ID(), len(docs[i].Vector()), mc.col.Dimension(),
					domain.ErrVectorDimMismatch,
				),
			}
		}
	}
	for i := range docs {
		mc.docs[docs[i].ID()] = docs[i]
	}
	return nil
}

// Delete removes documents by identifier; missing ids succeed silently.
func (s *Store) Delete(_ context.Context, collectionName string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mc, ok := s.collections[collectionName]
	if !ok {
		return &store.Error{
			Op: store.OpDelete, Collection: collectionName,
			Err: domain.ErrCollectionNotFound,
		}
	}
	for _, id := range ids {
		delete(mc.docs, id)
	}
	return nil
}

// Query scores every document exactly and returns the topK best-first,
// ties broken by document id ascending.
func (s *Store) Query(
	_ context.Context, collectionName string, vector []float32,
	topK int, f query.Filter, includeVectors bool,
) ([]result.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mc, ok := s.collections[collectionName]
	if !ok {
		return nil, &store.Error{
			Op: store.OpQuery, Collection: collectionName,
			Err: domain.ErrCollectionNotFound,
		}
	}
	if len(vector) != mc.col.Dimension() {
		return nil, &store.Error{
			Op: store.OpQuery, Collection: collectionName,
			Err: fmt.Errorf(
				"query vector: got %d, want %d: %w",
				len(vector), mc.col.Dimension(), domain.ErrVectorDimMismatch,
			),
		}
	}

	m := mc.col.Metric()
	results := make([]result.Result, 0, len(mc.docs))
	for id, doc := range mc.docs {
		if !f.Matches(doc.Tags(), doc.Numerics()) {
			continue
		}
		var vec []float32
		if includeVectors {
			vec = doc.Vector()
		}
		results = append(results, result.New(
			id, score(m, vector, doc.Vector()), doc.Content(),
			doc.Tags(), doc.Numerics(), vec,
		))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score() != results[j].Score() {
			return m.Better(results[i].Score(), results[j].Score())
		}
		return results[i].ID() < results[j].ID()
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// score computes the exact similarity between two vectors under the metric.
func score(m metric.Metric, a, b []float32) float64 {
	switch m {
	case metric.Dot:
		return dot(a, b)
	case metric.Euclid:
		return euclidean(a, b)
	default:
		return cosine(a, b)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func cosine(a, b []float32) float64 {
	var d, na, nb float64
	for i := range a {
		d += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return d / (math.Sqrt(na) * math.Sqrt(nb))
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
