package recall

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kailas-cloud/recall/internal/domain"
	retrievaluc "github.com/kailas-cloud/recall/internal/usecase/retrieval"
)

// Collection is one tenant's partition for one document category.
type Collection struct {
	coll *retrievaluc.Collection
}

// Tenant returns the owning tenant id.
func (c *Collection) Tenant() string { return c.coll.Tenant() }

// Category returns the document category.
func (c *Collection) Category() string { return c.coll.Category() }

// Name returns the physical collection name.
func (c *Collection) Name() string { return c.coll.Name() }

// AddDocuments embeds and stores a batch of documents, generating a UUID
// for every document without an id. Returns the final ids in input order.
// The batch is applied atomically: a write failure stores none of it.
func (c *Collection) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	ids := make([]string, len(docs))
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
		ids[i] = docs[i].ID
	}

	if err := c.coll.AddDocuments(ctx, toDomainDocuments(docs)); err != nil {
		return nil, fmt.Errorf("add documents: %w", err)
	}
	return ids, nil
}

// Search retrieves documents for the query. Index and embedding failures
// degrade to an empty result with a nil error; the only errors returned
// besides input validation are isolation breaches.
func (c *Collection) Search(ctx context.Context, query string, opts *SearchOptions) ([]SearchResult, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}

	res, err := c.coll.Search(ctx, domain.SearchQuery{
		Text:    query,
		TopK:    opts.TopK,
		Filters: opts.Filters,
		Hybrid:  opts.Hybrid,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return fromScoredDocuments(res.Documents), nil
}

// Stats reports the current document count for this collection.
func (c *Collection) Stats(ctx context.Context) (CollectionStats, error) {
	st, err := c.coll.Stats(ctx)
	if err != nil {
		return CollectionStats{}, fmt.Errorf("stats: %w", err)
	}
	return CollectionStats{
		Tenant:    st.Tenant,
		Category:  st.Category,
		Documents: st.Documents,
	}, nil
}
