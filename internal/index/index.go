package index

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store is the backing-index facade combining all sub-interfaces.
// Consumers depend on the narrow sub-interfaces; any backend that satisfies
// this shape is substitutable.
type Store interface {
	Pinger
	CollectionManager
	DocumentStore
	Querier
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CollectionManager provisions and enumerates collections.
type CollectionManager interface {
	// EnsureCollection provisions the partition and records its metadata.
	// Idempotent: calling it for an existing collection is a no-op.
	EnsureCollection(ctx context.Context, spec CollectionSpec) error
	// ListCollections enumerates all collections with their recorded metadata.
	ListCollections(ctx context.Context) ([]CollectionInfo, error)
	// CountDocuments reports how many documents a collection holds.
	CountDocuments(ctx context.Context, collection string) (int, error)
}

// DocumentStore writes documents. The batch is applied atomically: either
// every document in one Upsert call becomes visible or none does.
type DocumentStore interface {
	Upsert(ctx context.Context, collection string, docs []UpsertDoc) error
}

// Querier runs nearest-neighbor queries.
type Querier interface {
	Query(ctx context.Context, q Query) ([]Candidate, error)
}

// KVStore provides plain key-value access (embedding cache and budget
// counter storage). IncrBy treats a missing key as zero and creates it.
// Expire with nx only sets a TTL on keys that have none yet.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// CollectionSpec describes a collection to provision.
// FilterFields lists metadata keys that must be filterable. Backends with
// declared schemas (redis) materialize them as indexed fields; map-scanning
// backends ignore the list and filter any key. The tenant tag is always
// filterable and need not be listed.
type CollectionSpec struct {
	Name         string
	Tenant       string
	Category     string
	Dimensions   int
	FilterFields []string
}

// Validate checks the spec before provisioning.
func (s *CollectionSpec) Validate() error {
	if s.Name == "" {
		return errors.New("collection name is required")
	}
	if s.Tenant == "" || s.Category == "" {
		return fmt.Errorf("collection %q: tenant and category are required", s.Name)
	}
	if s.Dimensions <= 0 {
		return fmt.Errorf("collection %q: dimensions must be positive, got %d", s.Name, s.Dimensions)
	}
	return nil
}

// UpsertDoc is one document in an upsert batch, already embedded.
type UpsertDoc struct {
	ID       string
	Text     string
	Metadata map[string]string
	Vector   []float32
}

// Query is a nearest-neighbor request. Filters are conjunctive equality
// conditions over document metadata.
type Query struct {
	Collection string
	Vector     []float32
	TopK       int
	Filters    map[string]string
}

// Validate checks the query before dispatch.
func (q *Query) Validate() error {
	if q.Collection == "" {
		return errors.New("collection is required")
	}
	if len(q.Vector) == 0 {
		return errors.New("query vector is required")
	}
	if q.TopK <= 0 {
		return fmt.Errorf("topK must be positive, got %d", q.TopK)
	}
	return nil
}

// Candidate is one raw query hit. Drivers convert backend responses to this
// shape at ingress; nothing above the driver touches backend formats.
type Candidate struct {
	ID       string
	Text     string
	Metadata map[string]string
	Distance float64
}

// CollectionInfo is the recorded identity of one collection.
type CollectionInfo struct {
	Name     string
	Tenant   string
	Category string
}
