package collection

import (
	"fmt"
	"regexp"

	"github.com/nordlys-labs/qfrm/internal/domain/metric"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Collection is the collection aggregate (immutable value object).
// Dimension and metric are fixed at creation and never migrate.
type Collection struct {
	name      string
	dimension int
	distance  metric.Metric
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("collection name too long (max 64)")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("collection name must be alphanumeric with underscores and hyphens")
	}
	return nil
}

// New validates and creates a Collection.
// Name: ^[a-zA-Z0-9_-]+$, 1-64 chars. Dimension: > 0. Metric: cosine, dot or euclid.
func New(name string, dimension int, distance metric.Metric) (Collection, error) {
	if err := validateName(name); err != nil {
		return Collection{}, err
	}
	if dimension <= 0 {
		return Collection{}, fmt.Errorf("vector dimension must be positive, got %d", dimension)
	}
	if !distance.IsValid() {
		return Collection{}, fmt.Errorf("unknown distance metric %q", distance)
	}
	return Collection{name: name, dimension: dimension, distance: distance}, nil
}

// Reconstruct creates a Collection without validation (store hydration).
func Reconstruct(name string, dimension int, distance metric.Metric) Collection {
	return Collection{name: name, dimension: dimension, distance: distance}
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// Dimension returns the fixed vector dimension.
func (c Collection) Dimension() int { return c.dimension }

// Metric returns the distance metric.
func (c Collection) Metric() metric.Metric { return c.distance }

// Same reports whether another collection has identical dimension and metric.
func (c Collection) Same(other Collection) bool {
	return c.dimension == other.dimension && c.distance == other.distance
}
