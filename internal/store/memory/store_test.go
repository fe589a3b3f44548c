package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/nordlys-labs/qfrm/internal/domain"
	"github.com/nordlys-labs/qfrm/internal/domain/collection"
	"github.com/nordlys-labs/qfrm/internal/domain/document"
	"github.com/nordlys-labs/qfrm/internal/domain/metric"
	"github.com/nordlys-labs/qfrm/internal/domain/query"
)

func mustCollection(t *testing.T, name string, dim int, m metric.Metric) collection.Collection {
	t.Helper()
	col, err := collection.New(name, dim, m)
	if err != nil {
		t.Fatalf("collection.New failed: %v", err)
	}
	return col
}

func mustDoc(t *testing.T, id, content string, vec []float32) document.Document {
	t.Helper()
	doc, err := document.New(id, content, nil, nil)
	if err != nil {
		t.Fatalf("document.New failed: %v", err)
	}
	return doc.WithVector(vec)
}

func TestCreateDescribeDrop(t *testing.T) {
	s := New()
	ctx := context.Background()
	col := mustCollection(t, "products", 3, metric.Cosine)

	if err := s.Create(ctx, col); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Create(ctx, col); !errors.Is(err, domain.ErrCollectionConflict) {
		t.Fatalf("second Create: expected conflict, got %v", err)
	}

	got, err := s.Describe(ctx, "products")
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if !got.Same(col) {
		t.Error("described collection differs from created")
	}

	if err := s.Drop(ctx, "products"); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if _, err := s.Describe(ctx, "products"); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("expected not found after drop, got %v", err)
	}
	// Dropping a missing collection succeeds.
	if err := s.Drop(ctx, "products"); err != nil {
		t.Fatalf("idempotent Drop failed: %v", err)
	}
}

func TestQuery_CosineRanking(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Create(ctx, mustCollection(t, "c", 3, metric.Cosine)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	docs := []document.Document{
		mustDoc(t, "A", "doc a", []float32{1, 0, 0}),
		mustDoc(t, "B", "doc b", []float32{0, 1, 0}),
	}
	if err := s.Upsert(ctx, "c", docs); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	results, err := s.Query(ctx, "c", []float32{1, 0, 0.1}, 1, query.Filter{}, false)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 || results[0].ID() != "A" {
		t.Fatalf("expected [A], got %v results", len(results))
	}
}

func TestQuery_EuclidRanksLowerFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Create(ctx, mustCollection(t, "c", 2, metric.Euclid)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Upsert(ctx, "c", []document.Document{
		mustDoc(t, "near", "n", []float32{1, 1}),
		mustDoc(t, "far", "f", []float32{5, 5}),
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	results, err := s.Query(ctx, "c", []float32{1, 1.1}, 2, query.Filter{}, false)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if results[0].ID() != "near" || results[1].ID() != "far" {
		t.Errorf("euclid order wrong: %s, %s", results[0].ID(), results[1].ID())
	}
}

func TestQuery_TieBreakByID(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Create(ctx, mustCollection(t, "c", 2, metric.Dot)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// Identical vectors: identical dot scores, order must fall back to id.
	if err := s.Upsert(ctx, "c", []document.Document{
		mustDoc(t, "zeta", "z", []float32{1, 0}),
		mustDoc(t, "alpha", "a", []float32{1, 0}),
		mustDoc(t, "mid", "m", []float32{1, 0}),
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	results, err := s.Query(ctx, "c", []float32{1, 0}, 3, query.Filter{}, false)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, w := range want {
		if results[i].ID() != w {
			t.Errorf("position %d: got %s, want %s", i, results[i].ID(), w)
		}
	}
}

func TestQuery_FewerHitsThanTopK(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Create(ctx, mustCollection(t, "c", 2, metric.Cosine)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Upsert(ctx, "c", []document.Document{
		mustDoc(t, "a", "a", []float32{1, 0}),
		mustDoc(t, "b", "b", []float32{0, 1}),
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	results, err := s.Query(ctx, "c", []float32{1, 0}, 10, query.Filter{}, false)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2 (partial results are not an error)", len(results))
	}
}

func TestQuery_Filters(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Create(ctx, mustCollection(t, "c", 2, metric.Cosine)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	red, _ := document.New("red-1", "red item", map[string]string{"color": "red"}, map[string]float64{"price": 20})
	blue, _ := document.New("blue-1", "blue item", map[string]string{"color": "blue"}, map[string]float64{"price": 90})
	if err := s.Upsert(ctx, "c", []document.Document{
		red.WithVector([]float32{1, 0}),
		blue.WithVector([]float32{1, 0}),
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	match, _ := query.NewMatch("color", "red")
	f, _ := query.NewFilter([]query.Condition{match}, nil)

	results, err := s.Query(ctx, "c", []float32{1, 0}, 10, f, false)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 || results[0].ID() != "red-1" {
		t.Fatalf("filter returned wrong hits: %d", len(results))
	}
	if results[0].Tags()["color"] != "red" {
		t.Error("result lost tag metadata")
	}
}

func TestQuery_IncludeVectors(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Create(ctx, mustCollection(t, "c", 2, metric.Cosine)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Upsert(ctx, "c", []document.Document{mustDoc(t, "a", "a", []float32{1, 0})}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	without, _ := s.Query(ctx, "c", []float32{1, 0}, 1, query.Filter{}, false)
	if without[0].Vector() != nil {
		t.Error("vector returned without include_vectors")
	}
	with, _ := s.Query(ctx, "c", []float32{1, 0}, 1, query.Filter{}, true)
	if len(with[0].Vector()) != 2 {
		t.Error("vector missing with include_vectors")
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Create(ctx, mustCollection(t, "c", 3, metric.Cosine)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err := s.Upsert(ctx, "c", []document.Document{mustDoc(t, "a", "a", []float32{1, 0})})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected dim mismatch, got %v", err)
	}
	if s.Count("c") != 0 {
		t.Error("failed upsert persisted documents")
	}
}

func TestQuery_DimensionMismatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Create(ctx, mustCollection(t, "c", 3, metric.Cosine)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := s.Query(ctx, "c", []float32{1, 0}, 1, query.Filter{}, false)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected dim mismatch, got %v", err)
	}
}

func TestUpsertReplacesAndDeleteIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Create(ctx, mustCollection(t, "c", 2, metric.Cosine)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := s.Upsert(ctx, "c", []document.Document{mustDoc(t, "a", "old", []float32{1, 0})}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := s.Upsert(ctx, "c", []document.Document{mustDoc(t, "a", "new", []float32{0, 1})}); err != nil {
		t.Fatalf("replace Upsert failed: %v", err)
	}
	if s.Count("c") != 1 {
		t.Fatalf("count = %d, want 1 (upsert replaces)", s.Count("c"))
	}

	results, _ := s.Query(ctx, "c", []float32{0, 1}, 1, query.Filter{}, false)
	if results[0].Content() != "new" {
		t.Error("upsert did not replace content")
	}

	if err := s.Delete(ctx, "c", []string{"a", "missing"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if s.Count("c") != 0 {
		t.Error("delete did not remove document")
	}
	if err := s.Delete(ctx, "c", []string{"a"}); err != nil {
		t.Fatalf("repeated Delete failed: %v", err)
	}
}

func TestOperationsOnMissingCollection(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Upsert(ctx, "ghost", []document.Document{mustDoc(t, "a", "a", []float32{1})}); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("Upsert: expected not found, got %v", err)
	}
	if err := s.Delete(ctx, "ghost", []string{"a"}); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("Delete: expected not found, got %v", err)
	}
	if _, err := s.Query(ctx, "ghost", []float32{1}, 1, query.Filter{}, false); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("Query: expected not found, got %v", err)
	}
}
