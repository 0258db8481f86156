package retrieval

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/index"
)

// mockIndex implements Index with overridable behavior and call counters.
// Counters are mutex-guarded so concurrency tests can assert on them.
type mockIndex struct {
	mu          sync.Mutex
	ensureCalls int
	upsertCalls int
	queryCalls  int

	ensureFn func(ctx context.Context, spec index.CollectionSpec) error
	listFn   func(ctx context.Context) ([]index.CollectionInfo, error)
	countFn  func(ctx context.Context, collection string) (int, error)
	upsertFn func(ctx context.Context, collection string, docs []index.UpsertDoc) error
	queryFn  func(ctx context.Context, q index.Query) ([]index.Candidate, error)

	lastUpsert []index.UpsertDoc
	lastQuery  index.Query
}

func (m *mockIndex) EnsureCollection(ctx context.Context, spec index.CollectionSpec) error {
	m.mu.Lock()
	m.ensureCalls++
	m.mu.Unlock()
	if m.ensureFn != nil {
		return m.ensureFn(ctx, spec)
	}
	return nil
}

func (m *mockIndex) ListCollections(ctx context.Context) ([]index.CollectionInfo, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockIndex) CountDocuments(ctx context.Context, collection string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, collection)
	}
	return 0, nil
}

func (m *mockIndex) Upsert(ctx context.Context, collection string, docs []index.UpsertDoc) error {
	m.mu.Lock()
	m.upsertCalls++
	m.lastUpsert = docs
	m.mu.Unlock()
	if m.upsertFn != nil {
		return m.upsertFn(ctx, collection, docs)
	}
	return nil
}

func (m *mockIndex) Query(ctx context.Context, q index.Query) ([]index.Candidate, error) {
	m.mu.Lock()
	m.queryCalls++
	m.lastQuery = q
	m.mu.Unlock()
	if m.queryFn != nil {
		return m.queryFn(ctx, q)
	}
	return nil, nil
}

// mockEmbedder returns fixed vectors per text. Unknown texts get a unit
// fallback so distance math stays well-defined.
type mockEmbedder struct {
	mu         sync.Mutex
	vectors    map[string][]float32
	embedErr   error
	batchErr   error
	embedCalls int
	batchCalls int
}

func (m *mockEmbedder) vecFor(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	return []float32{1, 0, 0}
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()
	if m.embedErr != nil {
		return domain.EmbeddingResult{}, m.embedErr
	}
	return domain.EmbeddingResult{Embedding: m.vecFor(text)}, nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	m.batchCalls++
	m.mu.Unlock()
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = m.vecFor(text)
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
}

func newTestService(t *testing.T, idx Index, embedder Embedder, cfg Config) *Service {
	t.Helper()
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 3
	}
	return New(idx, embedder, cfg, nil, zap.NewNop())
}

func testCollection(t *testing.T, svc *Service, tenant, category string) *Collection {
	t.Helper()
	coll, err := svc.Collection(context.Background(), tenant, category)
	if err != nil {
		t.Fatalf("Collection(%s, %s) error = %v", tenant, category, err)
	}
	return coll
}
