package recall

import "github.com/kailas-cloud/recall/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidTenant          = domain.ErrInvalidTenant
	ErrInvalidCategory        = domain.ErrInvalidCategory
	ErrInvalidQuery           = domain.ErrInvalidQuery
	ErrInvalidDocument        = domain.ErrInvalidDocument
	ErrCollectionNotFound     = domain.ErrCollectionNotFound
	ErrIndexWrite             = domain.ErrIndexWrite
	ErrIsolationViolation     = domain.ErrIsolationViolation
	ErrEmbedderNotConfigured  = domain.ErrEmbedderNotConfigured
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded
)
