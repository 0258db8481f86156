package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/index/memory"
	chiTransport "github.com/kailas-cloud/recall/internal/transport/chi"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/recall/internal/usecase/retrieval"
	usageuc "github.com/kailas-cloud/recall/internal/usecase/usage"
)

// stubEmbedder returns canned vectors per text; unknown texts get a unit
// fallback so distance math stays well-defined.
type stubEmbedder struct {
	vectors  map[string][]float32
	embedErr error
}

func (s *stubEmbedder) vecFor(text string) []float32 {
	if v, ok := s.vectors[text]; ok {
		return v
	}
	return []float32{1, 0, 0}
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if s.embedErr != nil {
		return domain.EmbeddingResult{}, s.embedErr
	}
	return domain.EmbeddingResult{Embedding: s.vecFor(text), TotalTokens: 1}, nil
}

func (s *stubEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if s.embedErr != nil {
		return domain.BatchEmbeddingResult{}, s.embedErr
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = s.vecFor(text)
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings, TotalTokens: len(texts)}, nil
}

// startService wires the real stack (in-memory index, retrieval service,
// chi transport) onto an httptest server. apiKeys enables bearer auth.
func startService(t *testing.T, emb retrievaluc.Embedder, apiKeys []string) *httptest.Server {
	t.Helper()

	store := memory.NewStore()
	t.Cleanup(store.Close)

	svc := retrievaluc.New(store, emb, retrievaluc.Config{Dimensions: 3}, nil, zap.NewNop())
	srv := chiTransport.NewServer(svc, usageuc.New(nil), healthuc.New(store, nil), zap.NewNop())

	r := chi.NewRouter()
	if len(apiKeys) > 0 {
		r.Use(chiTransport.BearerAuthMiddleware(apiKeys))
	}
	srv.Register(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func TestRoundTrip(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"printer setup":     {0, 1, 0},
		"office hours":      {1, 0, 0},
		"when are you open": {0.9, 0.1, 0},
	}}
	ts := startService(t, emb, nil)

	c, err := New(ts.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	coll := c.Collection("acme", "faq")

	ids, err := coll.AddDocuments(ctx, []Document{
		{Text: "printer setup", Metadata: map[string]string{"topic": "it"}},
		{ID: "hours", Text: "office hours", Metadata: map[string]string{"topic": "general"}},
	})
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2 entries", ids)
	}
	if ids[0] == "" {
		t.Error("expected generated id for document without one")
	}
	if ids[1] != "hours" {
		t.Errorf("ids[1] = %q, want hours", ids[1])
	}

	results, err := coll.Search(ctx, "when are you open", &SearchOptions{TopK: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].ID != "hours" {
		t.Errorf("top hit = %q, want hours", results[0].ID)
	}
	if results[0].Metadata["topic"] != "general" {
		t.Errorf("metadata = %v, want topic carried through", results[0].Metadata)
	}

	// Filters narrow the candidate set before ranking.
	filtered, err := coll.Search(ctx, "when are you open", &SearchOptions{
		Filters: map[string]string{"topic": "it"},
	})
	if err != nil {
		t.Fatalf("filtered Search: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != ids[0] {
		t.Errorf("filtered results = %+v, want only the it document", filtered)
	}

	stats, err := coll.Stats(ctx)
	if err != nil {
		t.Fatalf("collection Stats: %v", err)
	}
	if stats.Tenant != "acme" || stats.Category != "faq" || stats.Documents != 2 {
		t.Errorf("stats = %+v, want acme/faq with 2 documents", stats)
	}

	names, err := c.ListCollections(ctx, "acme")
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if len(names) != 1 || names[0] != "acme_faq" {
		t.Errorf("names = %v, want [acme_faq]", names)
	}

	svcStats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if svcStats.TotalCollections != 1 || svcStats.CachedCollections != 1 {
		t.Errorf("stats = %+v, want 1 collection provisioned and cached", svcStats)
	}
	if svcStats.CacheEntries != 2 {
		t.Errorf("cache entries = %d, want 2", svcStats.CacheEntries)
	}

	report, err := c.Usage(ctx, "")
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if report.Period != "month" {
		t.Errorf("period = %q, want month", report.Period)
	}
	if report.Budget.TokensRemaining != -1 {
		t.Errorf("remaining = %d, want -1 without a budget", report.Budget.TokensRemaining)
	}

	health, err := c.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("health = %q, want ok", health.Status)
	}
	if health.Checks["index"] != "ok" {
		t.Errorf("checks = %v, want index ok", health.Checks)
	}
}

func TestRoundTrip_ValidationError(t *testing.T) {
	ts := startService(t, &stubEmbedder{}, nil)

	c, err := New(ts.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.Collection("Not-Valid", "faq").Stats(context.Background())
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("want ErrValidationFailed, got %v", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", apiErr.StatusCode)
	}
	if apiErr.Code != "validation_failed" {
		t.Errorf("code = %q, want validation_failed", apiErr.Code)
	}
}

func TestRoundTrip_QuotaExceeded(t *testing.T) {
	emb := &stubEmbedder{embedErr: fmt.Errorf("embed: %w", domain.ErrEmbeddingQuotaExceeded)}
	ts := startService(t, emb, nil)

	c, err := New(ts.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.Collection("acme", "faq").AddDocuments(context.Background(),
		[]Document{{Text: "anything"}})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("want ErrQuotaExceeded, got %v", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusPaymentRequired {
		t.Errorf("status = %d, want 402", apiErr.StatusCode)
	}
}

func TestRoundTrip_DegradedSearch(t *testing.T) {
	// Падение эмбеддера деградирует поиск до пустого результата, не ошибки.
	emb := &stubEmbedder{embedErr: errors.New("provider down")}
	ts := startService(t, emb, nil)

	c, err := New(ts.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results, err := c.Collection("acme", "faq").Search(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("degraded Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want empty degraded result", len(results))
	}
}

func TestRoundTrip_BearerAuth(t *testing.T) {
	ts := startService(t, &stubEmbedder{}, []string{"good-key"})

	authed, err := New(ts.URL, WithAPIKey("good-key"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := authed.Stats(context.Background()); err != nil {
		t.Fatalf("authorized Stats: %v", err)
	}

	anon, err := New(ts.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := anon.Stats(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}

	// Health is exempt from auth.
	if _, err := anon.Health(context.Background()); err != nil {
		t.Fatalf("Health should bypass auth: %v", err)
	}
}
