package query

import "fmt"

// MaxTopK is the maximum number of results a single query may request.
const MaxTopK = 1000

// Query is a similarity search request (immutable value object).
type Query struct {
	content        string
	topK           int
	filter         Filter
	includeVectors bool
}

// New validates and creates a Query.
// Content: non-empty. TopK: 1..MaxTopK.
func New(content string, topK int, f Filter, includeVectors bool) (Query, error) {
	if content == "" {
		return Query{}, fmt.Errorf("query content is required")
	}
	if topK <= 0 {
		return Query{}, fmt.Errorf("top_k must be positive, got %d", topK)
	}
	if topK > MaxTopK {
		return Query{}, fmt.Errorf("top_k too large (max %d)", MaxTopK)
	}
	return Query{content: content, topK: topK, filter: f, includeVectors: includeVectors}, nil
}

// Content returns the embeddable query content.
func (q Query) Content() string { return q.content }

// TopK returns the requested result count.
func (q Query) TopK() int { return q.topK }

// Filter returns the metadata filter.
func (q Query) Filter() Filter { return q.filter }

// IncludeVectors reports whether hit vectors should be returned.
func (q Query) IncludeVectors() bool { return q.includeVectors }
