package recall

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/index"
	indexBolt "github.com/kailas-cloud/recall/internal/index/bolt"
	indexMemory "github.com/kailas-cloud/recall/internal/index/memory"
	indexRedis "github.com/kailas-cloud/recall/internal/index/redis"
	retrievaluc "github.com/kailas-cloud/recall/internal/usecase/retrieval"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the recall SDK entry point.
type Client struct {
	store index.Store
	svc   *retrievaluc.Service
}

// New creates a recall Client and connects to the backing index.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		dimensions: defaultDimensions,
	}
	for _, o := range opts {
		o(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("recall: index driver required (use WithRedis, WithBolt, or WithMemory)")
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("recall: index not ready: %w", err)
	}

	return wireClient(store, cfg), nil
}

func createStore(cfg *clientConfig) (index.Store, error) {
	switch cfg.driver {
	case "redis":
		s, err := indexRedis.NewStore(indexRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("recall: create redis store: %w", err)
		}
		return s, nil
	case "bolt":
		s, err := indexBolt.NewStore(indexBolt.Config{Path: cfg.path})
		if err != nil {
			return nil, fmt.Errorf("recall: create bolt store: %w", err)
		}
		return s, nil
	case "memory":
		return indexMemory.NewStore(), nil
	default:
		return nil, fmt.Errorf("recall: unknown driver %q", cfg.driver)
	}
}

func wireClient(store index.Store, cfg *clientConfig) *Client {
	// Embedder: noop если не задан (поиск деградирует, запись вернёт ошибку)
	var emb retrievaluc.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		emb = &embedderAdapter{inner: cfg.embedder}
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	svc := retrievaluc.New(store, emb, retrievaluc.Config{
		Dimensions:   cfg.dimensions,
		CacheTTL:     cfg.cacheTTL,
		CacheSize:    cfg.cacheSize,
		Timeout:      cfg.timeout,
		FilterFields: cfg.filterFields,
	}, nil, logger)

	return &Client{store: store, svc: svc}
}

// Close releases the index connection.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks index connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Collection returns the handle for (tenant, category), provisioning the
// backing partition on first access. Handles are cached per identity and
// safe for concurrent use.
func (c *Client) Collection(ctx context.Context, tenant, category string) (*Collection, error) {
	coll, err := c.svc.Collection(ctx, tenant, category)
	if err != nil {
		return nil, fmt.Errorf("collection %s/%s: %w", tenant, category, err)
	}
	return &Collection{coll: coll}, nil
}

// ListCollections returns the collection names owned by tenant, sorted.
func (c *Client) ListCollections(ctx context.Context, tenant string) ([]string, error) {
	names, err := c.svc.ListCollections(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

// Stats reports totals across the index and the per-collection result caches.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	st, err := c.svc.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return Stats{
		TotalCollections:  st.TotalCollections,
		CachedCollections: st.CachedCollections,
		CacheEntries:      st.CacheEntries,
	}, nil
}

// embedderAdapter wraps the public Embedder to satisfy the internal contract.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	be, ok := a.inner.(BatchEmbedder)
	if !ok {
		return domain.BatchFallback(ctx, a, texts)
	}
	r, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopEmbedder rejects every call (used when no embedder is configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf("recall: %w (use WithEmbedder)", domain.ErrEmbedderNotConfigured)
}

func (noopEmbedder) BatchEmbed(_ context.Context, _ []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchEmbeddingResult{}, fmt.Errorf("recall: %w (use WithEmbedder)", domain.ErrEmbedderNotConfigured)
}
