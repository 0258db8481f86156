package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kailas-cloud/recall/internal/index"
)

// Compile-time check: Store implements index.Store.
var _ index.Store = (*Store)(nil)

// Store is a process-local index.Store. It backs tests and the "memory"
// driver for local development; nothing survives a restart.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	kv          map[string]kvEntry
}

type collection struct {
	info index.CollectionInfo
	dims int
	docs map[string]index.UpsertDoc
	// insertion order of first appearance, for stable enumeration
	order []string
}

type kvEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]*collection),
		kv:          make(map[string]kvEntry),
	}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// WaitForReady is immediate.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// EnsureCollection records the collection. Idempotent.
func (s *Store) EnsureCollection(_ context.Context, spec index.CollectionSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[spec.Name]; ok {
		return nil
	}
	s.collections[spec.Name] = &collection{
		info: index.CollectionInfo{
			Name:     spec.Name,
			Tenant:   spec.Tenant,
			Category: spec.Category,
		},
		dims: spec.Dimensions,
		docs: make(map[string]index.UpsertDoc),
	}
	return nil
}

// ListCollections enumerates recorded collections sorted by name.
func (s *Store) ListCollections(_ context.Context) ([]index.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]index.CollectionInfo, 0, len(s.collections))
	for _, c := range s.collections {
		infos = append(infos, c.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// CountDocuments reports the collection size.
func (s *Store) CountDocuments(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return 0, index.ErrCollectionNotFound
	}
	return len(c.docs), nil
}

// Upsert validates the whole batch before applying it, so a bad document
// leaves the collection untouched.
func (s *Store) Upsert(_ context.Context, name string, docs []index.UpsertDoc) error {
	if name == "" {
		return fmt.Errorf("collection is required")
	}
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return index.ErrCollectionNotFound
	}

	for i := range docs {
		doc := &docs[i]
		if doc.ID == "" {
			return fmt.Errorf("document %d: id is required", i)
		}
		if len(doc.Vector) == 0 {
			return fmt.Errorf("document %q: vector is required", doc.ID)
		}
		if c.dims > 0 && len(doc.Vector) != c.dims {
			return fmt.Errorf("%w: expected %d, got %d", index.ErrDimensionMismatch, c.dims, len(doc.Vector))
		}
	}

	for i := range docs {
		doc := docs[i]
		doc.Metadata = cloneMap(doc.Metadata)
		if _, seen := c.docs[doc.ID]; !seen {
			c.order = append(c.order, doc.ID)
		}
		c.docs[doc.ID] = doc
	}
	return nil
}

// Query brute-forces cosine distance, applies conjunctive equality filters,
// and returns the nearest TopK. Ties keep insertion order.
func (s *Store) Query(_ context.Context, q index.Query) ([]index.Candidate, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[q.Collection]
	if !ok {
		return nil, index.ErrCollectionNotFound
	}

	candidates := make([]index.Candidate, 0, len(c.docs))
	for _, id := range c.order {
		doc, ok := c.docs[id]
		if !ok {
			continue
		}
		if !matchesFilters(doc.Metadata, q.Filters) {
			continue
		}
		candidates = append(candidates, index.Candidate{
			ID:       doc.ID,
			Text:     doc.Text,
			Metadata: cloneMap(doc.Metadata),
			Distance: cosineDistance(q.Vector, doc.Vector),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	if len(candidates) > q.TopK {
		candidates = candidates[:q.TopK]
	}
	return candidates, nil
}

// Get retrieves a KV value, honoring expiry lazily.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.kv[key]
	if !ok {
		return nil, index.ErrKeyNotFound
	}
	if !entry.expiresAt.IsZero() && !time.Now().Before(entry.expiresAt) {
		delete(s.kv, key)
		return nil, index.ErrKeyNotFound
	}
	return entry.value, nil
}

// SetWithTTL stores a KV value with an expiry.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := kvEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.kv[key] = entry
	return nil
}

// IncrBy increments a numeric KV value, creating the key at zero if absent.
func (s *Store) IncrBy(_ context.Context, key string, val int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	entry, ok := s.kv[key]
	if ok && (entry.expiresAt.IsZero() || time.Now().Before(entry.expiresAt)) {
		parsed, err := strconv.ParseInt(string(entry.value), 10, 64)
		if err != nil {
			return &index.Error{Op: index.OpIncr, Err: fmt.Errorf("key %q holds non-integer value", key)}
		}
		current = parsed
	} else {
		entry = kvEntry{}
	}

	entry.value = []byte(strconv.FormatInt(current+val, 10))
	s.kv[key] = entry
	return nil
}

// Expire sets a TTL on an existing key. With nx the TTL is only applied when
// the key has none yet. Missing keys are a no-op, matching backend semantics.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.kv[key]
	if !ok {
		return nil
	}
	if nx && !entry.expiresAt.IsZero() {
		return nil
	}
	entry.expiresAt = time.Now().Add(ttl)
	s.kv[key] = entry
	return nil
}

func matchesFilters(metadata, filters map[string]string) bool {
	for k, want := range filters {
		if metadata[k] != want {
			return false
		}
	}
	return true
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1.0
	}
	return 1.0 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
