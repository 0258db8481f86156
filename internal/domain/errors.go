package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTenant signals a tenant identifier outside the allowed alphabet.
	ErrInvalidTenant = errors.New("invalid tenant id")
	// ErrInvalidCategory signals a category identifier outside the allowed alphabet.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrInvalidQuery signals a malformed search query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidDocument signals a document missing its id or text.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrCollectionNotFound signals a missing collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrIndexWrite signals a failed index upsert; the batch is never partially applied.
	ErrIndexWrite = errors.New("index write failed")
	// ErrIndexQuery signals a failed or timed-out index query.
	ErrIndexQuery = errors.New("index query failed")
	// ErrIsolationViolation signals a result tagged for a different tenant.
	ErrIsolationViolation = errors.New("tenant isolation violation")
	// ErrEmbedderNotConfigured signals a text operation without an embedder.
	ErrEmbedderNotConfigured = errors.New("embedder not configured")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingQuotaExceeded signals a rejected call under an exhausted token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding token quota exceeded")
)

// IsolationViolationError wraps ErrIsolationViolation with the offending document.
type IsolationViolationError struct {
	DocumentID string
	Want       string
	Got        string
}

func (e *IsolationViolationError) Error() string {
	return fmt.Sprintf("%s: document %q tagged %q, collection tenant %q",
		ErrIsolationViolation.Error(), e.DocumentID, e.Got, e.Want)
}

func (e *IsolationViolationError) Unwrap() error { return ErrIsolationViolation }

// NewIsolationViolation creates an isolation violation error.
func NewIsolationViolation(documentID, want, got string) error {
	return &IsolationViolationError{DocumentID: documentID, Want: want, Got: got}
}
