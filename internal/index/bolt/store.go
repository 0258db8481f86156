package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kailas-cloud/recall/internal/index"
)

// Compile-time check: Store implements index.Store.
var _ index.Store = (*Store)(nil)

var (
	bucketCollections = []byte("collections")
	bucketKV          = []byte("kv")
)

func docsBucket(collection string) []byte {
	return []byte("docs:" + collection)
}

// Config holds parameters for an embedded bbolt store.
type Config struct {
	Path string
}

// Store implements index.Store on a single bbolt file. Documents persist as
// JSON; vectors are additionally held in memory for brute-force search, so
// queries never touch disk. Suited to single-node deployments without a
// Redis alongside.
type Store struct {
	db *bbolt.DB

	mu      sync.RWMutex
	vectors map[string]map[string][]float32 // collection -> id -> vector
}

type storedMeta struct {
	Tenant     string `json:"tenant"`
	Category   string `json:"category"`
	Dimensions int    `json:"dimensions"`
	CreatedAt  string `json:"created_at"`
}

type storedDoc struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Vector   []float32         `json:"vector"`
}

type storedKV struct {
	Value     []byte `json:"v"`
	ExpiresAt int64  `json:"exp"` // unix nanos, 0 = no expiry
}

// NewStore opens (or creates) the bbolt file and loads vectors into memory.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	db, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt file: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketCollections); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketKV)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	s := &Store{db: db, vectors: make(map[string]map[string][]float32)}
	if err := s.loadVectors(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load vectors: %w", err)
	}
	return s, nil
}

func (s *Store) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		colls := tx.Bucket(bucketCollections)
		if colls == nil {
			return nil
		}
		return colls.ForEach(func(name, _ []byte) error {
			docs := tx.Bucket(docsBucket(string(name)))
			if docs == nil {
				return nil
			}
			vecs := make(map[string][]float32)
			err := docs.ForEach(func(id, v []byte) error {
				var doc storedDoc
				if err := json.Unmarshal(v, &doc); err != nil {
					return nil // skip corrupted entries
				}
				vecs[string(id)] = doc.Vector
				return nil
			})
			if err != nil {
				return err
			}
			s.vectors[string(name)] = vecs
			return nil
		})
	})
}

// Ping reports whether the file handle is open.
func (s *Store) Ping(_ context.Context) error {
	if s.db == nil {
		return index.ErrUnavailable
	}
	return nil
}

// WaitForReady is immediate for an embedded store.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

// Close releases the file handle.
func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// EnsureCollection records collection metadata and creates its documents
// bucket. Idempotent.
func (s *Store) EnsureCollection(_ context.Context, spec index.CollectionSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		colls := tx.Bucket(bucketCollections)
		if colls.Get([]byte(spec.Name)) != nil {
			return nil
		}
		meta, err := json.Marshal(storedMeta{
			Tenant:     spec.Tenant,
			Category:   spec.Category,
			Dimensions: spec.Dimensions,
			CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := colls.Put([]byte(spec.Name), meta); err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists(docsBucket(spec.Name))
		return err
	})
	if err != nil {
		return &index.Error{Op: index.OpEnsure, Err: err}
	}

	s.mu.Lock()
	if _, ok := s.vectors[spec.Name]; !ok {
		s.vectors[spec.Name] = make(map[string][]float32)
	}
	s.mu.Unlock()
	return nil
}

// ListCollections reads every recorded collection identity.
func (s *Store) ListCollections(_ context.Context) ([]index.CollectionInfo, error) {
	var infos []index.CollectionInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCollections).ForEach(func(name, v []byte) error {
			var meta storedMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return nil
			}
			infos = append(infos, index.CollectionInfo{
				Name:     string(name),
				Tenant:   meta.Tenant,
				Category: meta.Category,
			})
			return nil
		})
	})
	if err != nil {
		return nil, &index.Error{Op: index.OpList, Err: err}
	}
	return infos, nil
}

// CountDocuments reports the documents bucket size.
func (s *Store) CountDocuments(_ context.Context, collection string) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(docsBucket(collection))
		if b == nil {
			return index.ErrCollectionNotFound
		}
		n = b.Stats().KeyN
		return nil
	})
	if err != nil {
		if errors.Is(err, index.ErrCollectionNotFound) {
			return 0, err
		}
		return 0, &index.Error{Op: index.OpCount, Err: err}
	}
	return n, nil
}

// Upsert writes the whole batch in one bbolt transaction, so either every
// document becomes visible or none does.
func (s *Store) Upsert(_ context.Context, collection string, docs []index.UpsertDoc) error {
	if collection == "" {
		return fmt.Errorf("collection is required")
	}
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(docsBucket(collection))
		if b == nil {
			return index.ErrCollectionNotFound
		}

		dims := 0
		if raw := tx.Bucket(bucketCollections).Get([]byte(collection)); raw != nil {
			var meta storedMeta
			if json.Unmarshal(raw, &meta) == nil {
				dims = meta.Dimensions
			}
		}

		for i := range docs {
			doc := &docs[i]
			if doc.ID == "" {
				return fmt.Errorf("document %d: id is required", i)
			}
			if len(doc.Vector) == 0 {
				return fmt.Errorf("document %q: vector is required", doc.ID)
			}
			if dims > 0 && len(doc.Vector) != dims {
				return fmt.Errorf("%w: expected %d, got %d", index.ErrDimensionMismatch, dims, len(doc.Vector))
			}
			data, err := json.Marshal(storedDoc{
				Text:     doc.Text,
				Metadata: doc.Metadata,
				Vector:   doc.Vector,
			})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(doc.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &index.Error{Op: index.OpUpsert, Err: err}
	}

	// The transaction committed; mirror the batch into the search cache.
	vecs, ok := s.vectors[collection]
	if !ok {
		vecs = make(map[string][]float32)
		s.vectors[collection] = vecs
	}
	for i := range docs {
		vecs[docs[i].ID] = docs[i].Vector
	}
	return nil
}

// Query brute-forces cosine distance over the in-memory vectors, filters by
// metadata equality, and returns the nearest TopK.
func (s *Store) Query(_ context.Context, q index.Query) ([]index.Candidate, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	s.mu.RLock()
	vecs, ok := s.vectors[q.Collection]
	if !ok {
		s.mu.RUnlock()
		return nil, index.ErrCollectionNotFound
	}

	type scored struct {
		id       string
		distance float64
	}
	scores := make([]scored, 0, len(vecs))
	for id, vec := range vecs {
		scores = append(scores, scored{id: id, distance: cosineDistance(q.Vector, vec)})
	}
	s.mu.RUnlock()

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].distance != scores[j].distance {
			return scores[i].distance < scores[j].distance
		}
		return scores[i].id < scores[j].id
	})

	// Over-select before filtering: metadata lives on disk.
	var candidates []index.Candidate
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(docsBucket(q.Collection))
		if b == nil {
			return index.ErrCollectionNotFound
		}
		for _, sc := range scores {
			if len(candidates) == q.TopK {
				break
			}
			raw := b.Get([]byte(sc.id))
			if raw == nil {
				continue
			}
			var doc storedDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				continue
			}
			if !matchesFilters(doc.Metadata, q.Filters) {
				continue
			}
			candidates = append(candidates, index.Candidate{
				ID:       sc.id,
				Text:     doc.Text,
				Metadata: doc.Metadata,
				Distance: sc.distance,
			})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, index.ErrCollectionNotFound) {
			return nil, err
		}
		return nil, &index.Error{Op: index.OpQuery, Err: err}
	}
	return candidates, nil
}

func matchesFilters(metadata, filters map[string]string) bool {
	for k, want := range filters {
		if metadata[k] != want {
			return false
		}
	}
	return true
}

// cosineDistance is 1 − cosine similarity, matching the COSINE metric the
// networked driver reports.
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

// Get retrieves a KV value, honoring expiry lazily.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	expired := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketKV).Get([]byte(key))
		if raw == nil {
			return index.ErrKeyNotFound
		}
		var entry storedKV
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		if entry.ExpiresAt > 0 && time.Now().UnixNano() >= entry.ExpiresAt {
			expired = true
			return nil
		}
		value = entry.Value
		return nil
	})
	if err != nil {
		if errors.Is(err, index.ErrKeyNotFound) {
			return nil, err
		}
		return nil, &index.Error{Op: index.OpGet, Err: err}
	}
	if expired {
		// Reclaim outside the read transaction.
		_ = s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketKV).Delete([]byte(key))
		})
		return nil, index.ErrKeyNotFound
	}
	return value, nil
}

// SetWithTTL stores a KV value with an expiry timestamp.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}
	data, err := json.Marshal(storedKV{Value: value, ExpiresAt: expiresAt})
	if err != nil {
		return &index.Error{Op: index.OpSet, Err: err}
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), data)
	})
	if err != nil {
		return &index.Error{Op: index.OpSet, Err: err}
	}
	return nil
}

// IncrBy read-modify-writes a counter inside one bbolt transaction. A missing
// or expired key starts at zero.
func (s *Store) IncrBy(_ context.Context, key string, val int64) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketKV)

		var entry storedKV
		var current int64
		if raw := b.Get([]byte(key)); raw != nil {
			if err := json.Unmarshal(raw, &entry); err != nil {
				return err
			}
			if entry.ExpiresAt > 0 && time.Now().UnixNano() >= entry.ExpiresAt {
				entry = storedKV{}
			} else {
				parsed, err := strconv.ParseInt(string(entry.Value), 10, 64)
				if err != nil {
					return fmt.Errorf("key %q holds non-integer value", key)
				}
				current = parsed
			}
		}

		entry.Value = []byte(strconv.FormatInt(current+val, 10))
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return &index.Error{Op: index.OpIncr, Err: err}
	}
	return nil
}

// Expire rewrites the stored expiry timestamp. With nx the write is skipped
// when the key already has one. Missing keys are a no-op.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketKV)
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		var entry storedKV
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		if nx && entry.ExpiresAt > 0 {
			return nil
		}
		entry.ExpiresAt = time.Now().Add(ttl).UnixNano()
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return &index.Error{Op: index.OpExpire, Err: err}
	}
	return nil
}
