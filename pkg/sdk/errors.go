package sdk

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped from API error codes. Use errors.Is() to check.
var (
	ErrBadRequest            = errors.New("bad request")
	ErrValidationFailed      = errors.New("validation failed")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrCollectionNotFound    = errors.New("collection not found")
	ErrIsolationViolation    = errors.New("tenant isolation violation")
	ErrQuotaExceeded         = errors.New("embedding token quota exceeded")
	ErrEmbeddingProvider     = errors.New("embedding provider error")
	ErrEmbedderNotConfigured = errors.New("embedder not configured")
	ErrIndexUnavailable      = errors.New("index unavailable")
	ErrInternal              = errors.New("internal server error")
)

// APIError is a structured error response from the service. errors.Is
// matches the sentinel for the carried code, errors.As recovers the
// status code and message.
type APIError struct {
	StatusCode int    // HTTP status
	Code       string // machine-readable code from the error body
	Message    string // human-readable detail
}

func (e *APIError) Error() string {
	return fmt.Sprintf("recall api: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// Unwrap maps the carried code to its sentinel. Unknown codes map to
// ErrInternal so callers always have something to match.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "bad_request":
		return ErrBadRequest
	case "validation_failed":
		return ErrValidationFailed
	case "unauthorized":
		return ErrUnauthorized
	case "collection_not_found":
		return ErrCollectionNotFound
	case "isolation_violation":
		return ErrIsolationViolation
	case "embedding_quota_exceeded":
		return ErrQuotaExceeded
	case "embedding_provider_error":
		return ErrEmbeddingProvider
	case "embedder_not_configured":
		return ErrEmbedderNotConfigured
	case "index_unavailable":
		return ErrIndexUnavailable
	default:
		return ErrInternal
	}
}
