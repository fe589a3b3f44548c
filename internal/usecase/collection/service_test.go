package collection

import (
	"context"
	"errors"
	"testing"

	"github.com/nordlys-labs/qfrm/internal/domain"
	domcol "github.com/nordlys-labs/qfrm/internal/domain/collection"
	"github.com/nordlys-labs/qfrm/internal/domain/metric"
	"github.com/nordlys-labs/qfrm/internal/retry"
)

// mockStore is a hand-written collection store double.
type mockStore struct {
	collections map[string]domcol.Collection

	createCalls   int
	describeCalls int
	dropCalls     int

	createErr   error
	describeErr error
	dropErr     error
}

func newMockStore() *mockStore {
	return &mockStore{collections: make(map[string]domcol.Collection)}
}

func (m *mockStore) Create(_ context.Context, col domcol.Collection) error {
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.collections[col.Name()]; ok {
		return domain.ErrCollectionConflict
	}
	m.collections[col.Name()] = col
	return nil
}

func (m *mockStore) Describe(_ context.Context, name string) (domcol.Collection, error) {
	m.describeCalls++
	if m.describeErr != nil {
		return domcol.Collection{}, m.describeErr
	}
	col, ok := m.collections[name]
	if !ok {
		return domcol.Collection{}, domain.ErrCollectionNotFound
	}
	return col, nil
}

func (m *mockStore) Drop(_ context.Context, name string) error {
	m.dropCalls++
	if m.dropErr != nil {
		return m.dropErr
	}
	delete(m.collections, name)
	return nil
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialBackoff: 1, MaxBackoff: 1}
}

func TestEnsure_CreatesWhenAbsent(t *testing.T) {
	store := newMockStore()
	svc := New(store, fastRetry())

	col, err := svc.Ensure(context.Background(), "products", 384, metric.Cosine)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if col.Name() != "products" || col.Dimension() != 384 {
		t.Errorf("unexpected collection: %s/%d", col.Name(), col.Dimension())
	}
	if store.createCalls != 1 {
		t.Errorf("create called %d times, want 1", store.createCalls)
	}
}

func TestEnsure_Idempotent(t *testing.T) {
	store := newMockStore()
	svc := New(store, fastRetry())
	ctx := context.Background()

	if _, err := svc.Ensure(ctx, "products", 384, metric.Cosine); err != nil {
		t.Fatalf("first Ensure failed: %v", err)
	}
	if _, err := svc.Ensure(ctx, "products", 384, metric.Cosine); err != nil {
		t.Fatalf("second Ensure failed: %v", err)
	}
	if store.createCalls != 1 {
		t.Errorf("create called %d times, want 1 (second ensure is a no-op)", store.createCalls)
	}
}

func TestEnsure_ConflictOnDifferentShape(t *testing.T) {
	store := newMockStore()
	svc := New(store, fastRetry())
	ctx := context.Background()

	if _, err := svc.Ensure(ctx, "products", 384, metric.Cosine); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	if _, err := svc.Ensure(ctx, "products", 768, metric.Cosine); !errors.Is(err, domain.ErrCollectionConflict) {
		t.Errorf("dimension drift: expected conflict, got %v", err)
	}
	if _, err := svc.Ensure(ctx, "products", 384, metric.Dot); !errors.Is(err, domain.ErrCollectionConflict) {
		t.Errorf("metric drift: expected conflict, got %v", err)
	}
}

func TestEnsure_CreateRaceResolvedByRedescribe(t *testing.T) {
	store := newMockStore()
	svc := New(store, fastRetry())

	// Another writer created the identical collection between our describe
	// and create.
	col, _ := domcol.New("products", 384, metric.Cosine)
	store.createErr = domain.ErrCollectionConflict
	store.collections["products"] = col

	// First describe must miss so Ensure goes down the create path.
	first := true
	svc = New(&raceStore{inner: store, missFirst: &first}, fastRetry())
	got, err := svc.Ensure(context.Background(), "products", 384, metric.Cosine)
	if err != nil {
		t.Fatalf("Ensure should resolve create race, got %v", err)
	}
	if !got.Same(col) {
		t.Error("resolved collection differs")
	}
}

// raceStore misses the first describe, then delegates.
type raceStore struct {
	inner     *mockStore
	missFirst *bool
}

func (r *raceStore) Create(ctx context.Context, col domcol.Collection) error {
	return r.inner.Create(ctx, col)
}

func (r *raceStore) Describe(ctx context.Context, name string) (domcol.Collection, error) {
	if *r.missFirst {
		*r.missFirst = false
		return domcol.Collection{}, domain.ErrCollectionNotFound
	}
	return r.inner.Describe(ctx, name)
}

func (r *raceStore) Drop(ctx context.Context, name string) error {
	return r.inner.Drop(ctx, name)
}

func TestEnsure_InvalidInput(t *testing.T) {
	svc := New(newMockStore(), fastRetry())

	if _, err := svc.Ensure(context.Background(), "", 384, metric.Cosine); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty name: expected invalid input, got %v", err)
	}
	if _, err := svc.Ensure(context.Background(), "ok", 0, metric.Cosine); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("zero dimension: expected invalid input, got %v", err)
	}
}

func TestDrop_Idempotent(t *testing.T) {
	store := newMockStore()
	svc := New(store, fastRetry())
	ctx := context.Background()

	if _, err := svc.Ensure(ctx, "products", 384, metric.Cosine); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if err := svc.Drop(ctx, "products"); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if err := svc.Drop(ctx, "products"); err != nil {
		t.Fatalf("second Drop failed: %v", err)
	}
}

func TestDrop_SwallowsNotFound(t *testing.T) {
	store := newMockStore()
	store.dropErr = domain.ErrCollectionNotFound
	svc := New(store, fastRetry())

	if err := svc.Drop(context.Background(), "ghost"); err != nil {
		t.Fatalf("Drop on missing collection should succeed, got %v", err)
	}
}

func TestDescribe_RetriesTransientFailures(t *testing.T) {
	store := newMockStore()
	col, _ := domcol.New("products", 384, metric.Cosine)
	store.collections["products"] = col

	flaky := &flakyStore{inner: store, failures: 2, err: domain.ErrStoreUnavailable}
	svc := New(flaky, fastRetry())

	got, err := svc.Describe(context.Background(), "products")
	if err != nil {
		t.Fatalf("Describe should survive transient failures, got %v", err)
	}
	if !got.Same(col) {
		t.Error("described collection differs")
	}
	if flaky.calls != 3 {
		t.Errorf("describe called %d times, want 3", flaky.calls)
	}
}

// flakyStore fails the first N describes with a transient error.
type flakyStore struct {
	inner    *mockStore
	failures int
	calls    int
	err      error
}

func (f *flakyStore) Create(ctx context.Context, col domcol.Collection) error {
	return f.inner.Create(ctx, col)
}

func (f *flakyStore) Describe(ctx context.Context, name string) (domcol.Collection, error) {
	f.calls++
	if f.calls <= f.failures {
		return domcol.Collection{}, f.err
	}
	return f.inner.Describe(ctx, name)
}

func (f *flakyStore) Drop(ctx context.Context, name string) error {
	return f.inner.Drop(ctx, name)
}
