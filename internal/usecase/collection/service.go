package collection

import (
	"context"
	"errors"
	"fmt"

	"github.com/nordlys-labs/qfrm/internal/domain"
	domcol "github.com/nordlys-labs/qfrm/internal/domain/collection"
	"github.com/nordlys-labs/qfrm/internal/domain/metric"
	"github.com/nordlys-labs/qfrm/internal/retry"
)

// Service manages collection lifecycle against the vector store.
type Service struct {
	store Store
	retry retry.Policy
}

// New creates a collection service.
func New(store Store, policy retry.Policy) *Service {
	return &Service{store: store, retry: policy}
}

// Ensure creates the collection if absent. Calling it again with identical
// dimension and metric succeeds; a differing dimension or metric fails with
// ErrCollectionConflict — existing data is never migrated.
func (s *Service) Ensure(ctx context.Context, name string, dimension int, m metric.Metric) (domcol.Collection, error) {
	want, err := domcol.New(name, dimension, m)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("validate collection: %w: %w", domain.ErrInvalidInput, err)
	}

	existing, err := s.describe(ctx, name)
	switch {
	case err == nil:
		if !existing.Same(want) {
			return domcol.Collection{}, conflict(name, existing, want)
		}
		return existing, nil
	case !errors.Is(err, domain.ErrCollectionNotFound):
		return domcol.Collection{}, fmt.Errorf("describe collection: %w", err)
	}

	createErr := s.retry.Do(ctx, func() error {
		return s.store.Create(ctx, want)
	})
	if createErr == nil {
		return want, nil
	}

	// A concurrent Ensure may have won the create race; re-describe and
	// compare instead of failing.
	if errors.Is(createErr, domain.ErrCollectionConflict) {
		existing, err = s.describe(ctx, name)
		if err == nil {
			if existing.Same(want) {
				return existing, nil
			}
			return domcol.Collection{}, conflict(name, existing, want)
		}
	}

	return domcol.Collection{}, fmt.Errorf("create collection: %w", createErr)
}

// Describe returns the collection as the store reports it.
func (s *Service) Describe(ctx context.Context, name string) (domcol.Collection, error) {
	col, err := s.describe(ctx, name)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("describe collection: %w", err)
	}
	return col, nil
}

// Drop removes the collection. Dropping a missing collection succeeds.
func (s *Service) Drop(ctx context.Context, name string) error {
	err := s.retry.Do(ctx, func() error {
		return s.store.Drop(ctx, name)
	})
	if err != nil && !errors.Is(err, domain.ErrCollectionNotFound) {
		return fmt.Errorf("drop collection: %w", err)
	}
	return nil
}

func (s *Service) describe(ctx context.Context, name string) (domcol.Collection, error) {
	var col domcol.Collection
	err := s.retry.Do(ctx, func() error {
		var inner error
		col, inner = s.store.Describe(ctx, name)
		return inner
	})
	return col, err
}

func conflict(name string, existing, want domcol.Collection) error {
	return fmt.Errorf(
		"collection %q exists with dimension=%d metric=%s, requested dimension=%d metric=%s: %w",
		name, existing.Dimension(), existing.Metric(),
		want.Dimension(), want.Metric(), domain.ErrCollectionConflict,
	)
}
