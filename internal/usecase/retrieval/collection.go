package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/index"
	"github.com/kailas-cloud/recall/internal/repository/searchcache"
)

// Collection is one tenant's partition for one document category. Every
// write stamps the tenant tag from the collection's own identity and every
// query AND-s the tenant filter in, so callers cannot cross tenants by
// construction.
type Collection struct {
	tenant   string
	category string
	name     string

	idx      Index
	embedder Embedder
	cache    *searchcache.Cache
	timeout  time.Duration
	metrics  *Metrics
	logger   *zap.Logger
}

// Tenant returns the owning tenant id.
func (c *Collection) Tenant() string { return c.tenant }

// Category returns the document category.
func (c *Collection) Category() string { return c.category }

// Name returns the physical collection name.
func (c *Collection) Name() string { return c.name }

// AddDocuments embeds and upserts a batch of documents. The tenant tag is
// overwritten from the collection identity regardless of caller metadata.
// The batch is submitted as one index call, so a write failure leaves the
// collection without any of the submitted documents.
func (c *Collection) AddDocuments(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i := range docs {
		if err := docs[i].Validate(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidDocument, err)
		}
		texts[i] = docs[i].Text
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	batch, err := c.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents for %s: %w", c.name, err)
	}
	if len(batch.Embeddings) != len(docs) {
		return fmt.Errorf("embed documents for %s: expected %d embeddings, got %d",
			c.name, len(docs), len(batch.Embeddings))
	}

	upserts := make([]index.UpsertDoc, len(docs))
	for i, doc := range docs {
		metadata := make(map[string]string, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		metadata[domain.TenantTagKey] = c.tenant

		upserts[i] = index.UpsertDoc{
			ID:       doc.ID,
			Text:     doc.Text,
			Metadata: metadata,
			Vector:   batch.Embeddings[i],
		}
	}

	if err := c.idx.Upsert(ctx, c.name, upserts); err != nil {
		c.logger.Error("Document upsert failed",
			zap.Int("count", len(upserts)),
			zap.Error(err))
		return fmt.Errorf("add documents to %s: %w: %w", c.name, domain.ErrIndexWrite, err)
	}

	c.logger.Debug("Documents added",
		zap.Int("count", len(upserts)),
		zap.Int("tokens", batch.TotalTokens))
	return nil
}

// Search retrieves documents for the query. Results come from the per-
// collection cache when fresh; otherwise the query is embedded and run
// against the index with the tenant filter AND-ed in. Index and embedding
// failures degrade to an empty result with a nil error, so a broken index
// never takes the calling conversation down. The only error Search returns
// besides input validation is a detected isolation breach.
func (c *Collection) Search(ctx context.Context, query domain.SearchQuery) (domain.SearchResult, error) {
	if err := query.Normalize(); err != nil {
		return domain.SearchResult{}, err
	}

	filters := make(map[string]string, len(query.Filters)+1)
	for k, v := range query.Filters {
		filters[k] = v
	}
	filters[domain.TenantTagKey] = c.tenant

	cacheKey := searchcache.Key(query.Text, query.TopK, filters)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	mode := "vector"
	fetchK := query.TopK
	if query.Hybrid {
		// Larger candidate pool than the final cut: reranking may promote
		// near-boundary items.
		mode = "hybrid"
		fetchK = 2 * query.TopK
	}
	c.incSearch(mode)
	start := time.Now()
	defer func() { c.observeDuration(mode, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	emb, err := c.embedder.Embed(ctx, query.Text)
	if err != nil {
		c.logger.Warn("Query embedding failed, returning empty result",
			zap.String("query", query.Text),
			zap.Error(err))
		c.incDegraded()
		return domain.SearchResult{}, nil
	}

	candidates, err := c.idx.Query(ctx, index.Query{
		Collection: c.name,
		Vector:     emb.Embedding,
		TopK:       fetchK,
		Filters:    filters,
	})
	if err != nil {
		c.logger.Warn("Index query failed, returning empty result",
			zap.String("query", query.Text),
			zap.Error(err))
		c.incDegraded()
		return domain.SearchResult{}, nil
	}

	for _, cand := range candidates {
		if got := cand.Metadata[domain.TenantTagKey]; got != c.tenant {
			err := domain.NewIsolationViolation(cand.ID, c.tenant, got)
			c.logger.Error("Tenant isolation violation", zap.Error(err))
			return domain.SearchResult{}, err
		}
	}

	var docs []domain.ScoredDocument
	if query.Hybrid {
		docs = rerank(candidates, extractKeywords(query.Text), query.TopK)
	} else {
		docs = rankByDistance(candidates, query.TopK)
	}

	result := domain.SearchResult{Documents: docs}
	c.cache.Put(cacheKey, result)
	return result, nil
}

// Stats reports the current document count for this collection.
func (c *Collection) Stats(ctx context.Context) (domain.CollectionStats, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	count, err := c.idx.CountDocuments(ctx, c.name)
	if err != nil {
		return domain.CollectionStats{}, fmt.Errorf("count documents in %s: %w", c.name, err)
	}
	return domain.CollectionStats{
		Tenant:    c.tenant,
		Category:  c.category,
		Documents: count,
	}, nil
}

func (c *Collection) incSearch(mode string) {
	if c.metrics != nil && c.metrics.Searches != nil {
		c.metrics.Searches.WithLabelValues(c.tenant, mode).Inc()
	}
}

func (c *Collection) observeDuration(mode string, d time.Duration) {
	if c.metrics != nil && c.metrics.Duration != nil {
		c.metrics.Duration.WithLabelValues(c.tenant, mode).Observe(d.Seconds())
	}
}

func (c *Collection) incDegraded() {
	if c.metrics != nil && c.metrics.Degraded != nil {
		c.metrics.Degraded.WithLabelValues(c.tenant).Inc()
	}
}
