// Package chi is the HTTP API of the retrieval service.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nordlys-labs/qfrm/internal/domain"
	dombatch "github.com/nordlys-labs/qfrm/internal/domain/batch"
	"github.com/nordlys-labs/qfrm/internal/domain/document"
	"github.com/nordlys-labs/qfrm/internal/domain/metric"
	"github.com/nordlys-labs/qfrm/internal/domain/result"
	collectionuc "github.com/nordlys-labs/qfrm/internal/usecase/collection"
	healthuc "github.com/nordlys-labs/qfrm/internal/usecase/health"
	indexuc "github.com/nordlys-labs/qfrm/internal/usecase/index"
	searchuc "github.com/nordlys-labs/qfrm/internal/usecase/search"
)

const maxBatchSize = 256

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the retrieval pipeline over HTTP.
type Server struct {
	collections   *collectionuc.Service
	index         *indexuc.Service
	search        *searchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	collections *collectionuc.Service,
	index *indexuc.Service,
	search *searchuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		collections: collections,
		index:       index,
		search:      search,
		health:      health,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, codeCollectionNotFound),
		sentinelHandler(domain.ErrCollectionConflict, http.StatusConflict, codeCollectionConflict),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeVectorDimMismatch),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingBackend, http.StatusBadGateway, codeEmbeddingBackend),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codeStoreUnavailable),
	}
	return s
}

// Routes mounts all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/collections/{collection}", func(r chi.Router) {
			r.Put("/", s.ensureCollection)
			r.Get("/", s.getCollection)
			r.Delete("/", s.dropCollection)

			r.Put("/documents/{id}", s.upsertDocument)
			r.Post("/documents/batch", s.batchUpsert)
			r.Delete("/documents/batch", s.batchDelete)

			r.Post("/search", s.searchCollection)
		})
		r.Post("/search", s.searchMany)
	})
	r.Get("/health", s.healthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// ensureCollection handles PUT /api/v1/collections/{collection}.
func (s *Server) ensureCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")

	var req collectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	m, err := metric.Parse(req.Metric)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	col, err := s.collections.Ensure(r.Context(), name, req.Dimension, m)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, collectionToDTO(col))
}

// getCollection handles GET /api/v1/collections/{collection}.
func (s *Server) getCollection(w http.ResponseWriter, r *http.Request) {
	col, err := s.collections.Describe(r.Context(), chi.URLParam(r, "collection"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, collectionToDTO(col))
}

// dropCollection handles DELETE /api/v1/collections/{collection}.
func (s *Server) dropCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.collections.Drop(r.Context(), chi.URLParam(r, "collection")); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// upsertDocument handles PUT /api/v1/collections/{collection}/documents/{id}.
func (s *Server) upsertDocument(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	var req upsertDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	doc, err := documentFromUpsert(id, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	if err := s.index.Index(r.Context(), collection, doc); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(dombatch.StatusOK)})
}

// batchUpsert handles POST /api/v1/collections/{collection}/documents/batch.
func (s *Server) batchUpsert(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req batchUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Documents) == 0 || len(req.Documents) > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("documents count must be between 1 and %d", maxBatchSize))
		return
	}

	docs := make([]document.Document, 0, len(req.Documents))
	for _, item := range req.Documents {
		doc, err := document.New(item.ID, item.Content, item.Tags, item.Numerics)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed,
				fmt.Sprintf("document %q: %s", item.ID, err))
			return
		}
		docs = append(docs, doc)
	}

	results, err := s.index.IndexBatch(r.Context(), collection, docs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, batchResponseFrom(results))
}

// batchDelete handles DELETE /api/v1/collections/{collection}/documents/batch.
func (s *Server) batchDelete(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req batchDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.IDs) == 0 || len(req.IDs) > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("ids count must be between 1 and %d", maxBatchSize))
		return
	}

	if err := s.index.Remove(r.Context(), collection, req.IDs); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// searchCollection handles POST /api/v1/collections/{collection}/search.
func (s *Server) searchCollection(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	q, err := queryFromDTO(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	results, err := s.search.Search(r.Context(), collection, q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseFrom(results))
}

// searchMany handles POST /api/v1/search (multi-collection fan-out).
func (s *Server) searchMany(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Collections) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "collections list is required")
		return
	}

	q, err := queryFromDTO(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	results, err := s.search.SearchMany(r.Context(), req.Collections, q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseFrom(results))
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	statuses, healthy := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	overall := "healthy"
	if !healthy {
		httpStatus = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": overall,
		"checks": statuses,
	})
}

func batchResponseFrom(results []dombatch.Result) batchResponse {
	resp := batchResponse{Items: make([]batchResultItem, len(results))}
	for i, r := range results {
		resp.Items[i] = batchResultToDTO(r)
		if r.Status() == dombatch.StatusOK {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	return resp
}

func searchResponseFrom(results []result.Result) searchResponse {
	resp := searchResponse{
		Items: make([]searchResultItem, len(results)),
		Total: len(results),
	}
	for i := range results {
		resp.Items[i] = resultToDTO(&results[i])
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrCollectionNotFound,
		domain.ErrCollectionConflict,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingBackend,
		domain.ErrStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
