package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/recall/internal/usecase/retrieval"
	usageuc "github.com/kailas-cloud/recall/internal/usecase/usage"
)

const maxBatchSize = 100

// Error codes returned in the "code" field of error responses.
const (
	codeBadRequest             = "bad_request"
	codeValidationFailed       = "validation_failed"
	codeUnauthorized           = "unauthorized"
	codeCollectionNotFound     = "collection_not_found"
	codeIsolationViolation     = "isolation_violation"
	codeEmbeddingQuotaExceeded = "embedding_quota_exceeded"
	codeEmbeddingProviderError = "embedding_provider_error"
	codeEmbedderNotConfigured  = "embedder_not_configured"
	codeIndexUnavailable       = "index_unavailable"
	codeInternalError          = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the retrieval service over HTTP.
type Server struct {
	retrieval     *retrievaluc.Service
	usage         *usageuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	retrieval *retrievaluc.Service,
	usage *usageuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		retrieval: retrieval,
		usage:     usage,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidTenant, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidCategory, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, codeCollectionNotFound),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded,
			http.StatusPaymentRequired, codeEmbeddingQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, codeEmbeddingProviderError),
		sentinelHandler(domain.ErrEmbedderNotConfigured,
			http.StatusNotImplemented, codeEmbedderNotConfigured),
		sentinelHandler(domain.ErrIndexWrite, http.StatusServiceUnavailable, codeIndexUnavailable),
		sentinelHandler(domain.ErrIndexQuery, http.StatusServiceUnavailable, codeIndexUnavailable),
		sentinelHandler(domain.ErrIsolationViolation,
			http.StatusInternalServerError, codeIsolationViolation),
	}
	return s
}

// Register mounts all routes on the given router.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/usage", s.handleUsage)

		r.Route("/tenants/{tenant}", func(r chi.Router) {
			r.Get("/collections", s.handleListCollections)

			r.Route("/collections/{category}", func(r chi.Router) {
				r.Post("/documents", s.handleAddDocuments)
				r.Post("/search", s.handleSearch)
				r.Get("/stats", s.handleCollectionStats)
			})
		})
	})
}

// handleAddDocuments handles POST /tenants/{tenant}/collections/{category}/documents.
func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	category := chi.URLParam(r, "category")

	var req addDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Documents) == 0 || len(req.Documents) > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"documents count must be between 1 and 100")
		return
	}

	docs := make([]domain.Document, len(req.Documents))
	ids := make([]string, len(req.Documents))
	for i, d := range req.Documents {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		docs[i] = domain.Document{
			ID:       id,
			Text:     d.Text,
			Metadata: d.Metadata,
		}
		ids[i] = id
	}

	coll, err := s.retrieval.Collection(r.Context(), tenant, category)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if err := coll.AddDocuments(r.Context(), docs); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, addDocumentsResponse{
		Added: len(ids),
		IDs:   ids,
	})
}

// handleSearch handles POST /tenants/{tenant}/collections/{category}/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	category := chi.URLParam(r, "category")

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	coll, err := s.retrieval.Collection(r.Context(), tenant, category)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	res, err := coll.Search(r.Context(), domain.SearchQuery{
		Text:    req.Query,
		TopK:    req.TopK,
		Filters: req.Filters,
		Hybrid:  req.Hybrid,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultItem, len(res.Documents))
	for i := range res.Documents {
		items[i] = searchResultToDTO(&res.Documents[i])
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Results: items,
		Total:   len(items),
	})
}

// handleListCollections handles GET /tenants/{tenant}/collections.
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")

	names, err := s.retrieval.ListCollections(r.Context(), tenant)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}

	writeJSON(w, http.StatusOK, listCollectionsResponse{Collections: names})
}

// handleCollectionStats handles GET /tenants/{tenant}/collections/{category}/stats.
func (s *Server) handleCollectionStats(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	category := chi.URLParam(r, "category")

	coll, err := s.retrieval.Collection(r.Context(), tenant, category)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	stats, err := coll.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, collectionStatsResponse{
		Tenant:    stats.Tenant,
		Category:  stats.Category,
		Documents: stats.Documents,
	})
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.retrieval.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalCollections:  stats.TotalCollections,
		CachedCollections: stats.CachedCollections,
		CacheEntries:      stats.CacheEntries,
	})
}

// handleUsage handles GET /usage.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	period := domain.PeriodMonth
	switch p := r.URL.Query().Get("period"); p {
	case "", string(domain.PeriodMonth):
	case string(domain.PeriodDay):
		period = domain.PeriodDay
	default:
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"period must be \"day\" or \"month\"")
		return
	}

	report := s.usage.GetReport(r.Context(), period)

	writeJSON(w, http.StatusOK, usageResponse{
		Period:        string(report.Period),
		PeriodStartAt: report.PeriodStart,
		PeriodEndAt:   report.PeriodEnd,
		Tokens:        report.Tokens,
		Budget: budgetStatusDTO{
			TokensLimit:     report.Budget.TokensLimit,
			TokensRemaining: report.Budget.TokensRemaining,
			Exhausted:       report.Budget.Exhausted,
			ResetsAt:        report.Budget.ResetsAt,
		},
	})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// handleMetrics handles GET /metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidTenant,
		domain.ErrInvalidCategory,
		domain.ErrInvalidQuery,
		domain.ErrInvalidDocument,
		domain.ErrCollectionNotFound,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
		domain.ErrEmbedderNotConfigured,
		domain.ErrIndexWrite,
		domain.ErrIndexQuery,
		domain.ErrIsolationViolation,
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

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type documentPayload struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type addDocumentsRequest struct {
	Documents []documentPayload `json:"documents"`
}

type addDocumentsResponse struct {
	Added int      `json:"added"`
	IDs   []string `json:"ids"`
}

type searchRequest struct {
	Query   string            `json:"query"`
	TopK    int               `json:"top_k,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
	Hybrid  bool              `json:"hybrid,omitempty"`
}

type searchResultItem struct {
	ID             string            `json:"id"`
	Text           string            `json:"text"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	VectorDistance float64           `json:"vector_distance"`
	KeywordScore   float64           `json:"keyword_score"`
	CombinedScore  float64           `json:"combined_score"`
}

type searchResponse struct {
	Results []searchResultItem `json:"results"`
	Total   int                `json:"total"`
}

type listCollectionsResponse struct {
	Collections []string `json:"collections"`
}

type collectionStatsResponse struct {
	Tenant    string `json:"tenant"`
	Category  string `json:"category"`
	Documents int    `json:"documents"`
}

type statsResponse struct {
	TotalCollections  int `json:"total_collections"`
	CachedCollections int `json:"cached_collections"`
	CacheEntries      int `json:"cache_entries"`
}

type budgetStatusDTO struct {
	TokensLimit     int64     `json:"tokens_limit"`
	TokensRemaining int64     `json:"tokens_remaining"`
	Exhausted       bool      `json:"exhausted"`
	ResetsAt        time.Time `json:"resets_at"`
}

type usageResponse struct {
	Period        string          `json:"period"`
	PeriodStartAt time.Time       `json:"period_start_at"`
	PeriodEndAt   time.Time       `json:"period_end_at"`
	Tokens        int64           `json:"tokens"`
	Budget        budgetStatusDTO `json:"budget"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func searchResultToDTO(d *domain.ScoredDocument) searchResultItem {
	item := searchResultItem{
		ID:             d.ID,
		Text:           d.Text,
		VectorDistance: d.VectorDistance,
		KeywordScore:   d.KeywordScore,
		CombinedScore:  d.CombinedScore,
	}
	if len(d.Metadata) > 0 {
		item.Metadata = d.Metadata
	}
	return item
}
