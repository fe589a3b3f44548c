package domain

import "errors"

var (
	// ErrInvalidInput signals malformed caller input (empty content, bad top_k).
	ErrInvalidInput = errors.New("invalid input")
	// ErrCollectionNotFound signals a missing collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionConflict signals an existing collection with a different dimension or metric.
	ErrCollectionConflict = errors.New("collection conflict")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingBackend signals an unreachable embedding backend or malformed output.
	ErrEmbeddingBackend = errors.New("embedding backend error")
	// ErrStoreUnavailable signals a network or timeout failure talking to the vector store.
	ErrStoreUnavailable = errors.New("vector store unavailable")
)

// Retryable reports whether the error is a transient fault worth retrying.
// Precondition violations (not found, conflict, dimension mismatch, invalid
// input) indicate caller or config errors and are surfaced immediately.
func Retryable(err error) bool {
	return errors.Is(err, ErrEmbeddingBackend) || errors.Is(err, ErrStoreUnavailable)
}
