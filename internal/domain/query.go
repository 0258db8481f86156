package domain

import "fmt"

// DefaultTopK is the result count used when the caller does not set one.
const DefaultTopK = 3

// SearchQuery describes one retrieval request against a collection.
// Filters are conjunctive equality conditions on document metadata; the
// collection AND-s its own tenant filter in on top of them.
type SearchQuery struct {
	Text    string
	TopK    int
	Filters map[string]string
	Hybrid  bool
}

// Normalize fills defaults and validates. Hybrid defaults to the zero value
// of the field, so callers opt in explicitly.
func (q *SearchQuery) Normalize() error {
	if q.Text == "" {
		return fmt.Errorf("%w: empty query text", ErrInvalidQuery)
	}
	if q.TopK == 0 {
		q.TopK = DefaultTopK
	}
	if q.TopK < 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidQuery, q.TopK)
	}
	if _, ok := q.Filters[TenantTagKey]; ok {
		// Caller-supplied tenant filters are dropped, not honored.
		filtered := make(map[string]string, len(q.Filters))
		for k, v := range q.Filters {
			if k == TenantTagKey {
				continue
			}
			filtered[k] = v
		}
		q.Filters = filtered
	}
	return nil
}
