package index

import (
	"context"

	domcol "github.com/nordlys-labs/qfrm/internal/domain/collection"
	"github.com/nordlys-labs/qfrm/internal/domain/document"
)

// Store is the consumer interface for indexing operations (ISP).
type Store interface {
	Describe(ctx context.Context, name string) (domcol.Collection, error)
	Upsert(ctx context.Context, collection string, docs []document.Document) error
	Delete(ctx context.Context, collection string, ids []string) error
}
