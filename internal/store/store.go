// Package store defines the narrow contracts the retrieval pipeline holds
// against the external vector database. Backends (qdrant, memory) implement
// these; consumers depend only on the sub-interface they use.
package store

import (
	"context"

	"github.com/nordlys-labs/qfrm/internal/domain/collection"
	"github.com/nordlys-labs/qfrm/internal/domain/document"
	"github.com/nordlys-labs/qfrm/internal/domain/query"
	"github.com/nordlys-labs/qfrm/internal/domain/result"
)

// Store is the full vector store facade combining all sub-interfaces.
type Store interface {
	CollectionManager
	PointWriter
	Searcher
	Pinger
	Close()
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CollectionManager provides collection lifecycle operations.
type CollectionManager interface {
	// Create creates a new collection. Creating an existing collection fails.
	Create(ctx context.Context, col collection.Collection) error
	// Describe returns the collection as the store reports it.
	// Missing collection: domain.ErrCollectionNotFound.
	Describe(ctx context.Context, name string) (collection.Collection, error)
	// Drop removes a collection. Dropping a missing collection succeeds.
	Drop(ctx context.Context, name string) error
}

// PointWriter provides document persistence operations.
type PointWriter interface {
	// Upsert inserts or replaces documents by identifier. All documents must
	// carry vectors of the collection's dimension.
	Upsert(ctx context.Context, collection string, docs []document.Document) error
	// Delete removes documents by identifier. Deleting a missing id succeeds.
	Delete(ctx context.Context, collection string, ids []string) error
}

// Searcher provides similarity search.
type Searcher interface {
	// Query returns at most topK hits ordered best-first per the collection's
	// metric, ties broken by document identifier ascending. Fewer than topK
	// hits is not an error.
	Query(
		ctx context.Context, collection string, vector []float32,
		topK int, f query.Filter, includeVectors bool,
	) ([]result.Result, error)
}
