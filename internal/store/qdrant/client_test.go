package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/nordlys-labs/qfrm/internal/domain"
	"github.com/nordlys-labs/qfrm/internal/domain/collection"
	"github.com/nordlys-labs/qfrm/internal/domain/document"
	"github.com/nordlys-labs/qfrm/internal/domain/metric"
	"github.com/nordlys-labs/qfrm/internal/domain/query"
	"github.com/nordlys-labs/qfrm/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterStoreMetrics()
	os.Exit(m.Run())
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{Endpoint: server.URL, APIKey: "test-key", Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func okEnvelope(result any) map[string]any {
	return map[string]any{"status": "ok", "result": result}
}

func errEnvelope(msg string) map[string]any {
	return map[string]any{"status": map[string]string{"error": msg}}
}

func TestCreate_SendsVectorParams(t *testing.T) {
	var gotBody createCollectionRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/products" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("api-key") != "test-key" {
			t.Errorf("api-key header missing")
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(okEnvelope(true))
	})

	col, _ := collection.New("products", 384, metric.Cosine)
	if err := c.Create(context.Background(), col); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if gotBody.Vectors.Size != 384 || gotBody.Vectors.Distance != "Cosine" {
		t.Errorf("wire params = %+v", gotBody.Vectors)
	}
}

func TestCreate_Conflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(errEnvelope("Collection `products` already exists!"))
	})

	col, _ := collection.New("products", 384, metric.Cosine)
	err := c.Create(context.Background(), col)
	if !errors.Is(err, domain.ErrCollectionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/products" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(okEnvelope(map[string]any{
			"config": map[string]any{
				"params": map[string]any{
					"vectors": map[string]any{"size": 768, "distance": "Dot"},
				},
			},
			"points_count": 42,
		}))
	})

	col, err := c.Describe(context.Background(), "products")
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if col.Dimension() != 768 || col.Metric() != metric.Dot {
		t.Errorf("described %d/%s", col.Dimension(), col.Metric())
	}
}

func TestDescribe_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(errEnvelope("Collection `ghost` doesn't exist!"))
	})

	_, err := c.Describe(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDrop_MissingCollectionSucceeds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(errEnvelope("Collection `ghost` doesn't exist!"))
	})

	if err := c.Drop(context.Background(), "ghost"); err != nil {
		t.Fatalf("Drop on missing collection should succeed, got %v", err)
	}
}

func TestUpsert_MapsDocumentsToPoints(t *testing.T) {
	var gotBody upsertPointsRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/products/points" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Error("upsert must use wait=true")
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(okEnvelope(map[string]any{"status": "completed"}))
	})

	doc, _ := document.New("sku-1", "a red kayak", map[string]string{"color": "red"}, nil)
	err := c.Upsert(context.Background(), "products", []document.Document{
		doc.WithVector([]float32{0.1, 0.2}),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if len(gotBody.Points) != 1 {
		t.Fatalf("got %d points", len(gotBody.Points))
	}
	p := gotBody.Points[0]
	if p.ID != PointID("sku-1") {
		t.Errorf("point id = %s, want deterministic UUID for sku-1", p.ID)
	}
	if p.Payload.DocID != "sku-1" || p.Payload.Content != "a red kayak" {
		t.Errorf("payload = %+v", p.Payload)
	}
	if p.Payload.Tags["color"] != "red" {
		t.Error("tags not carried in payload")
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errEnvelope("Wrong input: Vector dimension error: expected dim: 384, got 2"))
	})

	doc, _ := document.New("sku-1", "content", nil, nil)
	err := c.Upsert(context.Background(), "products", []document.Document{
		doc.WithVector([]float32{0.1, 0.2}),
	})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected dim mismatch, got %v", err)
	}
}

func TestQuery_ParsesHitsAndTieBreaks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/products/points/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req searchPointsRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Limit != 3 || !req.WithPayload {
			t.Errorf("wire request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"result": []map[string]any{
				{"id": "u1", "score": 0.9, "payload": map[string]any{"doc_id": "zeta", "content": "z"}},
				{"id": "u2", "score": 0.9, "payload": map[string]any{"doc_id": "alpha", "content": "a"}},
				{"id": "u3", "score": 0.5, "payload": map[string]any{"doc_id": "last", "content": "l"}},
			},
		})
	})

	results, err := c.Query(context.Background(), "products", []float32{1, 0}, 3, query.Filter{}, false)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	want := []string{"alpha", "zeta", "last"}
	for i, w := range want {
		if results[i].ID() != w {
			t.Errorf("position %d: got %s, want %s", i, results[i].ID(), w)
		}
	}
}

func TestQuery_SendsFilter(t *testing.T) {
	var req searchPointsRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(okEnvelope([]any{}))
	})

	match, _ := query.NewMatch("color", "red")
	gte := 10.0
	rng, _ := query.NewRangeBounds(&gte, nil)
	price, _ := query.NewRange("price", rng)
	f, _ := query.NewFilter([]query.Condition{match, price}, nil)

	if _, err := c.Query(context.Background(), "products", []float32{1}, 5, f, false); err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if req.Filter == nil || len(req.Filter.Must) != 2 {
		t.Fatalf("filter not sent: %+v", req.Filter)
	}
	if req.Filter.Must[0].Key != "tags.color" || req.Filter.Must[0].Match.Value != "red" {
		t.Errorf("match condition = %+v", req.Filter.Must[0])
	}
	if req.Filter.Must[1].Key != "numerics.price" || *req.Filter.Must[1].Range.GTE != 10 {
		t.Errorf("range condition = %+v", req.Filter.Must[1])
	}
}

func TestServerError_IsStoreUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(errEnvelope("service internal error"))
	})

	_, err := c.Describe(context.Background(), "products")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}

func TestTransportError_IsStoreUnavailable(t *testing.T) {
	c, err := New(Config{Endpoint: "http://127.0.0.1:1", Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if err := c.Ping(context.Background()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}

func TestPointID_Deterministic(t *testing.T) {
	if PointID("sku-1") != PointID("sku-1") {
		t.Error("PointID must be deterministic")
	}
	if PointID("sku-1") == PointID("sku-2") {
		t.Error("different ids must map to different points")
	}
}
