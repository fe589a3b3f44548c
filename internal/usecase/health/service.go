// Package health aggregates readiness of the external dependencies.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nordlys-labs/qfrm/internal/domain"
	"github.com/nordlys-labs/qfrm/internal/store"
)

// Status is the readiness report of one dependency.
type Status struct {
	Component string `json:"component"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
}

// Service checks the vector store and the embedding backend.
type Service struct {
	store    store.Pinger
	embedder domain.HealthChecker
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a health service. embedder may be nil when the backend
// exposes no health endpoint.
func New(pinger store.Pinger, embedder domain.HealthChecker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    pinger,
		embedder: embedder,
		timeout:  5 * time.Second,
		logger:   logger,
	}
}

// Check probes every dependency and reports per-component status.
// The second return is true only when all components are healthy.
func (s *Service) Check(ctx context.Context) ([]Status, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	statuses := []Status{s.probe(ctx, "vector_store", s.store.Ping)}
	if s.embedder != nil {
		statuses = append(statuses, s.probe(ctx, "embedding_backend", s.embedder.HealthCheck))
	}

	healthy := true
	for _, st := range statuses {
		if !st.Healthy {
			healthy = false
		}
	}
	return statuses, healthy
}

func (s *Service) probe(ctx context.Context, component string, fn func(context.Context) error) Status {
	if err := fn(ctx); err != nil {
		s.logger.Warn("health check failed",
			zap.String("component", component), zap.Error(err))
		return Status{Component: component, Healthy: false, Error: err.Error()}
	}
	return Status{Component: component, Healthy: true}
}
