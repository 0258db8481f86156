package recall

import (
	"context"
	"fmt"
)

// Hit is a typed search result.
type Hit[T any] struct {
	Item           T
	VectorDistance float64
	KeywordScore   float64 // hybrid only, 0 otherwise
	CombinedScore  float64 // hybrid only, 0 otherwise
}

// SearchBuilder is a fluent builder for typed search queries.
type SearchBuilder[T any] struct {
	idx *TypedIndex[T]

	query   string
	topK    int
	hybrid  bool
	filters map[string]string
}

// Query sets the search text.
func (b *SearchBuilder[T]) Query(q string) *SearchBuilder[T] {
	b.query = q
	return b
}

// TopK caps the number of results; 0 means the service default.
func (b *SearchBuilder[T]) TopK(n int) *SearchBuilder[T] {
	b.topK = n
	return b
}

// Hybrid enables keyword-aware reranking on top of the vector scores.
func (b *SearchBuilder[T]) Hybrid() *SearchBuilder[T] {
	b.hybrid = true
	return b
}

// Where adds a metadata filter condition (exact match).
func (b *SearchBuilder[T]) Where(key, value string) *SearchBuilder[T] {
	if b.filters == nil {
		b.filters = make(map[string]string)
	}
	b.filters[key] = value
	return b
}

// Do executes the search and returns typed results.
func (b *SearchBuilder[T]) Do(ctx context.Context) ([]Hit[T], error) {
	coll, err := b.idx.collection(ctx)
	if err != nil {
		return nil, err
	}

	results, err := coll.Search(ctx, b.query, &SearchOptions{
		TopK:    b.topK,
		Filters: b.filters,
		Hybrid:  b.hybrid,
	})
	if err != nil {
		return nil, fmt.Errorf("typed search: %w", err)
	}
	return b.toHits(results), nil
}

func (b *SearchBuilder[T]) toHits(results []SearchResult) []Hit[T] {
	hits := make([]Hit[T], len(results))
	for i, r := range results {
		item, ok := b.idx.meta.fromDocument(Document{
			ID:       r.ID,
			Text:     r.Text,
			Metadata: r.Metadata,
		}).(T)
		if !ok {
			continue
		}
		hits[i] = Hit[T]{
			Item:           item,
			VectorDistance: r.VectorDistance,
			KeywordScore:   r.KeywordScore,
			CombinedScore:  r.CombinedScore,
		}
	}
	return hits
}
