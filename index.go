package recall

import (
	"context"
	"fmt"
)

// TypedIndex is a generic, schema-first view of one tenant collection.
// Schema is inferred from T's struct tags at construction time.
type TypedIndex[T any] struct {
	tenant   string
	category string
	client   *Client
	meta     *schemaMeta
}

// NewIndex creates a typed index handle for the given tenant and category.
// T must be a struct with recall tags. Schema is parsed once and cached.
func NewIndex[T any](client *Client, tenant, category string) (*TypedIndex[T], error) {
	meta, err := parseSchema[T]()
	if err != nil {
		return nil, fmt.Errorf("new index %s/%s: %w", tenant, category, err)
	}
	return &TypedIndex[T]{tenant: tenant, category: category, client: client, meta: meta}, nil
}

// Ensure provisions the collection if it does not exist (idempotent).
func (idx *TypedIndex[T]) Ensure(ctx context.Context) error {
	if _, err := idx.collection(ctx); err != nil {
		return fmt.Errorf("ensure: %w", err)
	}
	return nil
}

// Add embeds and stores typed items, generating ids where missing.
// Returns the final document ids in input order.
func (idx *TypedIndex[T]) Add(ctx context.Context, items ...T) ([]string, error) {
	docs := make([]Document, len(items))
	for i, item := range items {
		docs[i] = idx.meta.toDocument(item)
	}

	coll, err := idx.collection(ctx)
	if err != nil {
		return nil, err
	}
	return coll.AddDocuments(ctx, docs)
}

// Count returns the number of items in the collection.
func (idx *TypedIndex[T]) Count(ctx context.Context) (int, error) {
	coll, err := idx.collection(ctx)
	if err != nil {
		return 0, err
	}
	st, err := coll.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return st.Documents, nil
}

// Search returns a fluent search builder for this index.
func (idx *TypedIndex[T]) Search() *SearchBuilder[T] {
	return &SearchBuilder[T]{idx: idx}
}

// collection resolves the underlying handle; the client caches it per
// (tenant, category), so repeated calls are cheap.
func (idx *TypedIndex[T]) collection(ctx context.Context) (*Collection, error) {
	return idx.client.Collection(ctx, idx.tenant, idx.category)
}
