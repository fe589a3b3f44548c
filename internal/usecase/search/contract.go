package search

import (
	"context"

	domcol "github.com/nordlys-labs/qfrm/internal/domain/collection"
	"github.com/nordlys-labs/qfrm/internal/domain/query"
	"github.com/nordlys-labs/qfrm/internal/domain/result"
)

// Store is the consumer interface for search operations (ISP).
type Store interface {
	Describe(ctx context.Context, name string) (domcol.Collection, error)
	Query(
		ctx context.Context, collection string, vector []float32,
		topK int, f query.Filter, includeVectors bool,
	) ([]result.Result, error)
}
