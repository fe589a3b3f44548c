// Package qdrant is a typed HTTP client for the qdrant REST API, covering
// the four operation contracts the pipeline needs: collection lifecycle,
// point upsert/delete, and similarity search.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nordlys-labs/qfrm/internal/domain"
	"github.com/nordlys-labs/qfrm/internal/domain/collection"
	"github.com/nordlys-labs/qfrm/internal/domain/document"
	"github.com/nordlys-labs/qfrm/internal/domain/query"
	"github.com/nordlys-labs/qfrm/internal/domain/result"
	"github.com/nordlys-labs/qfrm/internal/metrics"
	"github.com/nordlys-labs/qfrm/internal/store"
)

// pointNamespace is the UUIDv5 namespace for deterministic point IDs.
// qdrant only accepts integer or UUID point IDs, so document identifiers
// are mapped to UUIDs; the original id travels in the payload.
var pointNamespace = uuid.MustParse("9e1b8cf2-6c7e-4cf4-9d5a-2f3e8a1b0c47")

const defaultTimeout = 30 * time.Second

// Config holds qdrant connection settings.
type Config struct {
	// Endpoint is the base URL of the qdrant REST API, e.g. http://localhost:6333.
	Endpoint string
	// APIKey is sent as the api-key header when non-empty.
	APIKey string
	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration
	// MaxConns sizes the connection pool; align with the pipeline concurrency limit.
	MaxConns int
	Logger   *zap.Logger
}

// Client talks to a qdrant instance. Safe for concurrent use; the underlying
// http.Client pools connections across requests.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

var _ store.Store = (*Client)(nil)

// New creates a qdrant client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("qdrant endpoint is required")
	}
	base, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant endpoint: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("qdrant endpoint must be http(s), got %q", cfg.Endpoint)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 16
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		MaxIdleConns:        maxConns,
		MaxIdleConnsPerHost: maxConns,
		MaxConnsPerHost:     maxConns,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Transport: transport, Timeout: timeout},
		logger:  logger,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Ping checks qdrant availability via the collections listing endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodGet, "/collections", nil, store.OpPing, "")
	return err
}

// Create creates a collection with the given dimension and distance metric.
func (c *Client) Create(ctx context.Context, col collection.Collection) error {
	distance, err := distanceName(col.Metric())
	if err != nil {
		return &store.Error{Op: store.OpCreateCollection, Collection: col.Name(), Err: err}
	}

	body := createCollectionRequest{
		Vectors: vectorParams{Size: col.Dimension(), Distance: distance},
	}
	_, _, err = c.do(
		ctx, http.MethodPut, "/collections/"+url.PathEscape(col.Name()),
		body, store.OpCreateCollection, col.Name(),
	)
	return err
}

// Describe fetches the collection's declared dimension and metric.
func (c *Client) Describe(ctx context.Context, name string) (collection.Collection, error) {
	_, data, err := c.do(
		ctx, http.MethodGet, "/collections/"+url.PathEscape(name),
		nil, store.OpDescribe, name,
	)
	if err != nil {
		return collection.Collection{}, err
	}

	var resp describeCollectionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return collection.Collection{}, &store.Error{
			Op: store.OpDescribe, Collection: name,
			Err: fmt.Errorf("malformed response: %w: %w", err, domain.ErrStoreUnavailable),
		}
	}

	m, err := metricFromDistance(resp.Result.Config.Params.Vectors.Distance)
	if err != nil {
		return collection.Collection{}, &store.Error{
			Op: store.OpDescribe, Collection: name,
			Err: fmt.Errorf("%w: %w", err, domain.ErrStoreUnavailable),
		}
	}

	return collection.Reconstruct(name, resp.Result.Config.Params.Vectors.Size, m), nil
}

// Drop removes a collection. Dropping a missing collection succeeds.
func (c *Client) Drop(ctx context.Context, name string) error {
	_, _, err := c.do(
		ctx, http.MethodDelete, "/collections/"+url.PathEscape(name),
		nil, store.OpDrop, name,
	)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// Upsert inserts or replaces points with wait=true so the write is visible
// to subsequent searches (either the upsert completed or it did not).
func (c *Client) Upsert(ctx context.Context, collectionName string, docs []document.Document) error {
	points := make([]upsertPoint, len(docs))
	for i := range docs {
		d := &docs[i]
		points[i] = upsertPoint{
			ID:     PointID(d.ID()),
			Vector: d.Vector(),
			Payload: pointPayload{
				DocID:    d.ID(),
				Content:  d.Content(),
				Tags:     d.Tags(),
				Numerics: d.Numerics(),
			},
		}
	}

	_, _, err := c.do(
		ctx, http.MethodPut,
		"/collections/"+url.PathEscape(collectionName)+"/points?wait=true",
		upsertPointsRequest{Points: points}, store.OpUpsert, collectionName,
	)
	return err
}

// Delete removes points by document id. Missing ids are ignored by qdrant,
// which gives the idempotence the contract requires.
func (c *Client) Delete(ctx context.Context, collectionName string, ids []string) error {
	points := make([]string, len(ids))
	for i, id := range ids {
		points[i] = PointID(id)
	}

	_, _, err := c.do(
		ctx, http.MethodPost,
		"/collections/"+url.PathEscape(collectionName)+"/points/delete?wait=true",
		deletePointsRequest{Points: points}, store.OpDelete, collectionName,
	)
	return err
}

// Query runs a similarity search and returns hits best-first with a
// deterministic document-id tie-break for equal scores.
func (c *Client) Query(
	ctx context.Context, collectionName string, vector []float32,
	topK int, f query.Filter, includeVectors bool,
) ([]result.Result, error) {
	req := searchPointsRequest{
		Vector:      vector,
		Limit:       topK,
		Filter:      filterToWire(f),
		WithPayload: true,
		WithVector:  includeVectors,
	}

	_, data, err := c.do(
		ctx, http.MethodPost,
		"/collections/"+url.PathEscape(collectionName)+"/points/search",
		req, store.OpQuery, collectionName,
	)
	if err != nil {
		return nil, err
	}

	var resp searchPointsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &store.Error{
			Op: store.OpQuery, Collection: collectionName,
			Err: fmt.Errorf("malformed response: %w: %w", err, domain.ErrStoreUnavailable),
		}
	}

	results := make([]result.Result, len(resp.Result))
	for i, hit := range resp.Result {
		id := hit.Payload.DocID
		if id == "" {
			id = hit.ID
		}
		results[i] = result.New(
			id, hit.Score, hit.Payload.Content,
			hit.Payload.Tags, hit.Payload.Numerics, hit.Vector,
		)
	}

	// qdrant orders by score per the collection metric; a stable sort on
	// equal scores adds the id-ascending tie-break without disturbing the
	// store's ordering otherwise.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score() == results[j].Score() && results[i].ID() < results[j].ID()
	})

	return results, nil
}

// PointID derives the deterministic qdrant point UUID for a document id.
func PointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

// do executes one HTTP round trip and classifies failures into the domain
// error taxonomy. Returns the response body for 2xx responses.
func (c *Client) do(
	ctx context.Context, method, path string, body any, op, collectionName string,
) (int, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, &store.Error{Op: op, Collection: collectionName, Err: err}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL.String(), "/")+path, reqBody)
	if err != nil {
		return 0, nil, &store.Error{Op: op, Collection: collectionName, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.StoreRequestsTotal.WithLabelValues(op, "unavailable").Inc()
		return 0, nil, &store.Error{
			Op: op, Collection: collectionName,
			Err: fmt.Errorf("%w: %w", err, domain.ErrStoreUnavailable),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.StoreRequestsTotal.WithLabelValues(op, "unavailable").Inc()
		return resp.StatusCode, nil, &store.Error{
			Op: op, Collection: collectionName,
			Err: fmt.Errorf("read response: %w: %w", err, domain.ErrStoreUnavailable),
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		metrics.StoreRequestsTotal.WithLabelValues(op, "success").Inc()
		metrics.StoreRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		return resp.StatusCode, data, nil
	}

	metrics.StoreRequestsTotal.WithLabelValues(op, "error").Inc()
	kindErr := classify(resp.StatusCode, data)
	c.logger.Debug("qdrant request failed",
		zap.String("op", op),
		zap.String("collection", collectionName),
		zap.Int("status", resp.StatusCode),
	)
	return resp.StatusCode, data, &store.Error{Op: op, Collection: collectionName, Err: kindErr}
}

// classify maps an HTTP failure to the error taxonomy. qdrant reports
// details in {"status": {"error": "..."}}.
func classify(status int, body []byte) error {
	var env statusEnvelope
	detail := ""
	if json.Unmarshal(body, &env) == nil {
		detail = env.errorText()
	}
	lower := strings.ToLower(detail)

	switch {
	case status == http.StatusNotFound,
		strings.Contains(lower, "doesn't exist"),
		strings.Contains(lower, "not found"):
		return withDetail(detail, domain.ErrCollectionNotFound)
	case status == http.StatusConflict, strings.Contains(lower, "already exists"):
		return withDetail(detail, domain.ErrCollectionConflict)
	case status >= 400 && status < 500 && strings.Contains(lower, "dimension"):
		return withDetail(detail, domain.ErrVectorDimMismatch)
	case status >= 500, status == http.StatusTooManyRequests:
		return withDetail(detail, domain.ErrStoreUnavailable)
	default:
		if detail == "" {
			detail = fmt.Sprintf("unexpected status %d", status)
		}
		return fmt.Errorf("qdrant: %s", detail)
	}
}

func withDetail(detail string, kind error) error {
	if detail == "" {
		return kind
	}
	return fmt.Errorf("%s: %w", detail, kind)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrCollectionNotFound)
}

// filterToWire converts a domain filter to the qdrant filter clause.
// Tag matches address payload tags, ranges address payload numerics.
func filterToWire(f query.Filter) *searchFilter {
	if f.IsEmpty() {
		return nil
	}
	return &searchFilter{
		Must:    conditionsToWire(f.Must()),
		MustNot: conditionsToWire(f.MustNot()),
	}
}

func conditionsToWire(conds []query.Condition) []searchCondition {
	if len(conds) == 0 {
		return nil
	}
	out := make([]searchCondition, 0, len(conds))
	for _, c := range conds {
		switch {
		case c.IsMatch():
			out = append(out, searchCondition{
				Key:   "tags." + c.Key(),
				Match: &matchValue{Value: c.Match()},
			})
		case c.IsRange():
			out = append(out, searchCondition{
				Key:   "numerics." + c.Key(),
				Range: &rangeBounds{GTE: c.Range().GTE(), LTE: c.Range().LTE()},
			})
		}
	}
	return out
}
