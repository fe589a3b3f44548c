package collection

import (
	"context"

	domcol "github.com/nordlys-labs/qfrm/internal/domain/collection"
)

// Store is the consumer interface for collection lifecycle operations (ISP).
type Store interface {
	Create(ctx context.Context, col domcol.Collection) error
	Describe(ctx context.Context, name string) (domcol.Collection, error)
	Drop(ctx context.Context, name string) error
}
