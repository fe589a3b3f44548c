package chi

import (
	"errors"
	"fmt"

	"github.com/nordlys-labs/qfrm/internal/domain"
	"github.com/nordlys-labs/qfrm/internal/domain/batch"
	domcol "github.com/nordlys-labs/qfrm/internal/domain/collection"
	domdoc "github.com/nordlys-labs/qfrm/internal/domain/document"
	"github.com/nordlys-labs/qfrm/internal/domain/query"
	"github.com/nordlys-labs/qfrm/internal/domain/result"
)

// Error codes in API responses.
const (
	codeBadRequest         = "bad_request"
	codeValidationFailed   = "validation_failed"
	codeCollectionNotFound = "collection_not_found"
	codeCollectionConflict = "collection_conflict"
	codeVectorDimMismatch  = "vector_dim_mismatch"
	codeEmbeddingBackend   = "embedding_backend_error"
	codeStoreUnavailable   = "store_unavailable"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type collectionRequest struct {
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
}

type collectionResponse struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
}

type upsertDocumentRequest struct {
	Content  string             `json:"content"`
	Tags     map[string]string  `json:"tags,omitempty"`
	Numerics map[string]float64 `json:"numerics,omitempty"`
}

type batchUpsertRequest struct {
	Documents []batchUpsertItem `json:"documents"`
}

type batchUpsertItem struct {
	ID       string             `json:"id"`
	Content  string             `json:"content"`
	Tags     map[string]string  `json:"tags,omitempty"`
	Numerics map[string]float64 `json:"numerics,omitempty"`
}

type batchDeleteRequest struct {
	IDs []string `json:"ids"`
}

type batchResponse struct {
	Items     []batchResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

type batchResultItem struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Error  *errorResponse `json:"error,omitempty"`
}

type searchRequest struct {
	// Collections targets multi-collection fan-out; ignored on the
	// per-collection route.
	Collections    []string    `json:"collections,omitempty"`
	Query          string      `json:"query"`
	TopK           int         `json:"top_k"`
	Filter         *filterExpr `json:"filter,omitempty"`
	IncludeVectors bool        `json:"include_vectors,omitempty"`
}

type filterExpr struct {
	Must    []filterCondition `json:"must,omitempty"`
	MustNot []filterCondition `json:"must_not,omitempty"`
}

type filterCondition struct {
	Key   string       `json:"key"`
	Match string       `json:"match,omitempty"`
	Range *filterRange `json:"range,omitempty"`
}

type filterRange struct {
	GTE *float64 `json:"gte,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

type searchResponse struct {
	Items []searchResultItem `json:"items"`
	Total int                `json:"total"`
}

type searchResultItem struct {
	ID       string             `json:"id"`
	Score    float64            `json:"score"`
	Content  string             `json:"content"`
	Tags     map[string]string  `json:"tags,omitempty"`
	Numerics map[string]float64 `json:"numerics,omitempty"`
	Vector   []float32          `json:"vector,omitempty"`
}

func collectionToDTO(c domcol.Collection) collectionResponse {
	return collectionResponse{
		Name:      c.Name(),
		Dimension: c.Dimension(),
		Metric:    string(c.Metric()),
	}
}

func documentFromUpsert(id string, req upsertDocumentRequest) (domdoc.Document, error) {
	doc, err := domdoc.New(id, req.Content, req.Tags, req.Numerics)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("build document: %w", err)
	}
	return doc, nil
}

func queryFromDTO(req searchRequest) (query.Query, error) {
	f, err := filterFromDTO(req.Filter)
	if err != nil {
		return query.Query{}, err
	}
	q, err := query.New(req.Query, req.TopK, f, req.IncludeVectors)
	if err != nil {
		return query.Query{}, fmt.Errorf("build query: %w", err)
	}
	return q, nil
}

func filterFromDTO(f *filterExpr) (query.Filter, error) {
	if f == nil {
		return query.Filter{}, nil
	}
	must, err := conditionsFromDTO(f.Must)
	if err != nil {
		return query.Filter{}, err
	}
	mustNot, err := conditionsFromDTO(f.MustNot)
	if err != nil {
		return query.Filter{}, err
	}
	out, err := query.NewFilter(must, mustNot)
	if err != nil {
		return query.Filter{}, fmt.Errorf("build filter: %w", err)
	}
	return out, nil
}

func conditionsFromDTO(cs []filterCondition) ([]query.Condition, error) {
	if len(cs) == 0 {
		return nil, nil
	}
	out := make([]query.Condition, 0, len(cs))
	for _, c := range cs {
		cond, err := conditionFromDTO(c)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func conditionFromDTO(c filterCondition) (query.Condition, error) {
	if c.Match != "" && c.Range != nil {
		return query.Condition{},
			fmt.Errorf("filter condition for %q must have match or range, not both", c.Key)
	}
	if c.Match != "" {
		cond, err := query.NewMatch(c.Key, c.Match)
		if err != nil {
			return query.Condition{}, fmt.Errorf("match filter: %w", err)
		}
		return cond, nil
	}
	if c.Range != nil {
		r, err := query.NewRangeBounds(c.Range.GTE, c.Range.LTE)
		if err != nil {
			return query.Condition{}, fmt.Errorf("range filter: %w", err)
		}
		cond, err := query.NewRange(c.Key, r)
		if err != nil {
			return query.Condition{}, fmt.Errorf("range condition: %w", err)
		}
		return cond, nil
	}
	return query.Condition{}, errors.New("filter condition must have either match or range")
}

func resultToDTO(r *result.Result) searchResultItem {
	return searchResultItem{
		ID:       r.ID(),
		Score:    r.Score(),
		Content:  r.Content(),
		Tags:     r.Tags(),
		Numerics: r.Numerics(),
		Vector:   r.Vector(),
	}
}

func batchResultToDTO(r batch.Result) batchResultItem {
	item := batchResultItem{
		ID:     r.ID(),
		Status: string(r.Status()),
	}
	if r.Err() != nil {
		item.Error = &errorResponse{
			Code:    batchErrorCode(r.Err()),
			Message: safeDomainMessage(r.Err()),
		}
	}
	return item
}

func batchErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrCollectionNotFound):
		return codeCollectionNotFound
	case errors.Is(err, domain.ErrVectorDimMismatch):
		return codeVectorDimMismatch
	case errors.Is(err, domain.ErrInvalidInput):
		return codeValidationFailed
	case errors.Is(err, domain.ErrEmbeddingBackend):
		return codeEmbeddingBackend
	case errors.Is(err, domain.ErrStoreUnavailable):
		return codeStoreUnavailable
	default:
		return codeInternalError
	}
}
