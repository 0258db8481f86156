package sdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Collection is a handle for one tenant's document category. It holds no
// state beyond the identity; the service owns provisioning and isolation.
type Collection struct {
	client   *Client
	tenant   string
	category string
}

// Tenant returns the owning tenant id.
func (c *Collection) Tenant() string { return c.tenant }

// Category returns the document category.
func (c *Collection) Category() string { return c.category }

// AddDocuments stores a batch of documents. The service generates a UUID
// for every document without an id and returns the final ids in input
// order. Batches are capped at 100 documents per call.
func (c *Collection) AddDocuments(ctx context.Context, docs []Document) (ids []string, err error) {
	start := time.Now()
	defer func() { c.client.obs.observe("add_documents", start, err) }()

	var resp addDocumentsResponse
	req := addDocumentsRequest{Documents: docs}
	if err = c.client.doJSON(ctx, http.MethodPost, c.path("documents"), req, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// Search retrieves documents for the query. A service whose index or
// embedder is down responds with an empty result, not an error.
func (c *Collection) Search(ctx context.Context, query string, opts *SearchOptions) (results []SearchResult, err error) {
	start := time.Now()
	defer func() { c.client.obs.observe("search", start, err) }()

	if opts == nil {
		opts = &SearchOptions{}
	}
	req := searchRequest{
		Query:   query,
		TopK:    opts.TopK,
		Filters: opts.Filters,
		Hybrid:  opts.Hybrid,
	}
	var resp searchResponse
	if err = c.client.doJSON(ctx, http.MethodPost, c.path("search"), req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Stats reports the current document count for this collection.
func (c *Collection) Stats(ctx context.Context) (stats CollectionStats, err error) {
	start := time.Now()
	defer func() { c.client.obs.observe("collection_stats", start, err) }()

	err = c.client.doJSON(ctx, http.MethodGet, c.path("stats"), nil, &stats)
	return stats, err
}

func (c *Collection) path(op string) string {
	return fmt.Sprintf("/api/v1/tenants/%s/collections/%s/%s",
		url.PathEscape(c.tenant), url.PathEscape(c.category), op)
}
