package qfrm

import (
	"github.com/nordlys-labs/qfrm/internal/domain/batch"
	domcol "github.com/nordlys-labs/qfrm/internal/domain/collection"
	domdoc "github.com/nordlys-labs/qfrm/internal/domain/document"
	"github.com/nordlys-labs/qfrm/internal/domain/query"
	"github.com/nordlys-labs/qfrm/internal/domain/result"
)

// Metric is the distance metric of a collection.
type Metric string

// Supported distance metrics.
const (
	Cosine Metric = "cosine"
	Dot    Metric = "dot"
	Euclid Metric = "euclid"
)

// Collection describes a named vector collection.
type Collection struct {
	Name      string
	Dimension int
	Metric    Metric
}

// Document is an item to index: text content plus filterable metadata.
// The embedding vector is derived from Content by the pipeline.
type Document struct {
	ID       string
	Content  string
	Tags     map[string]string
	Numerics map[string]float64
}

// Result is a single search hit.
type Result struct {
	ID       string
	Score    float64
	Content  string
	Tags     map[string]string
	Numerics map[string]float64
	Vector   []float32
}

// BatchResult is the outcome of one document in a batch operation.
type BatchResult struct {
	ID  string
	OK  bool
	Err error
}

// Filter restricts search hits by metadata. Must conditions all have to
// hold; MustNot conditions all have to fail.
type Filter struct {
	Must    []Condition
	MustNot []Condition
}

// Condition is one filter clause: set Match for an exact tag match, or
// GTE/LTE for an inclusive numeric range.
type Condition struct {
	Key   string
	Match string
	GTE   *float64
	LTE   *float64
}

// Match creates an exact tag match condition.
func Match(key, value string) Condition {
	return Condition{Key: key, Match: value}
}

// RangeGTE creates a numeric lower-bound condition (inclusive).
func RangeGTE(key string, min float64) Condition {
	return Condition{Key: key, GTE: &min}
}

// RangeLTE creates a numeric upper-bound condition (inclusive).
func RangeLTE(key string, max float64) Condition {
	return Condition{Key: key, LTE: &max}
}

// Range creates an inclusive numeric range condition.
func Range(key string, min, max float64) Condition {
	return Condition{Key: key, GTE: &min, LTE: &max}
}

func collectionFromDomain(c domcol.Collection) Collection {
	return Collection{
		Name:      c.Name(),
		Dimension: c.Dimension(),
		Metric:    Metric(c.Metric()),
	}
}

func documentToDomain(d Document) (domdoc.Document, error) {
	return domdoc.New(d.ID, d.Content, d.Tags, d.Numerics)
}

func resultFromDomain(r *result.Result) Result {
	return Result{
		ID:       r.ID(),
		Score:    r.Score(),
		Content:  r.Content(),
		Tags:     r.Tags(),
		Numerics: r.Numerics(),
		Vector:   r.Vector(),
	}
}

func resultsFromDomain(rs []result.Result) []Result {
	out := make([]Result, len(rs))
	for i := range rs {
		out[i] = resultFromDomain(&rs[i])
	}
	return out
}

func batchResultFromDomain(r batch.Result) BatchResult {
	return BatchResult{
		ID:  r.ID(),
		OK:  r.Status() == batch.StatusOK,
		Err: r.Err(),
	}
}

func filterToDomain(f Filter) (query.Filter, error) {
	must, err := conditionsToDomain(f.Must)
	if err != nil {
		return query.Filter{}, err
	}
	mustNot, err := conditionsToDomain(f.MustNot)
	if err != nil {
		return query.Filter{}, err
	}
	return query.NewFilter(must, mustNot)
}

func conditionsToDomain(cs []Condition) ([]query.Condition, error) {
	if len(cs) == 0 {
		return nil, nil
	}
	out := make([]query.Condition, 0, len(cs))
	for _, c := range cs {
		if c.Match != "" {
			cond, err := query.NewMatch(c.Key, c.Match)
			if err != nil {
				return nil, err
			}
			out = append(out, cond)
			continue
		}
		r, err := query.NewRangeBounds(c.GTE, c.LTE)
		if err != nil {
			return nil, err
		}
		cond, err := query.NewRange(c.Key, r)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}
