package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/recall/internal/index"
)

// Key scheme. Document keys share a prefix per collection so one FT index
// covers exactly one collection.
const (
	metaKeyPrefix = "recall:collection:"
	metaKeySuffix = ":meta"
	docKeyPrefix  = "recall:doc:"
	idxNamePrefix = "recall:idx:"
)

func metaKey(collection string) string {
	return metaKeyPrefix + collection + metaKeySuffix
}

func docPrefix(collection string) string {
	return docKeyPrefix + collection + ":"
}

func docKey(collection, id string) string {
	return docPrefix(collection) + id
}

func indexName(collection string) string {
	return idxNamePrefix + collection
}

// Reserved document hash fields. Declared filter fields are materialized
// next to them under their metadata key names.
const (
	fieldText  = "__text"
	fieldMeta  = "__meta"
	fieldVec   = "vector"
	fieldScore = "__vector_score" // KNN distance alias produced by FT.SEARCH
)

// HNSW build parameters for FT.CREATE.
const (
	hnswM           = 32
	hnswEFConstruct = 400
)

// EnsureCollection provisions the collection: metadata hash first, then the
// FT index. Idempotent; on FT.CREATE failure the metadata write is rolled
// back so a later attempt starts clean.
func (s *Store) EnsureCollection(ctx context.Context, spec index.CollectionSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	mk := metaKey(spec.Name)
	cmd := s.b().Exists().Key(mk).Build()
	count, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return &index.Error{Op: index.OpEnsure, Err: err}
	}
	if count > 0 {
		return nil
	}

	fields := map[string]string{
		"tenant":     spec.Tenant,
		"category":   spec.Category,
		"dimensions": strconv.Itoa(spec.Dimensions),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	if len(spec.FilterFields) > 0 {
		fields["filter_fields"] = strings.Join(spec.FilterFields, ",")
	}

	hset := s.b().Hset().Key(mk).FieldValue()
	for k, v := range fields {
		hset = hset.FieldValue(k, v)
	}
	if err := s.do(ctx, hset.Build()).Error(); err != nil {
		return &index.Error{Op: index.OpEnsure, Err: err}
	}

	if err := s.createIndex(ctx, spec); err != nil {
		cleanupErr := s.do(ctx, s.b().Del().Key(mk).Build()).Error()
		return errors.Join(err, cleanupErr)
	}
	return nil
}

func (s *Store) createIndex(ctx context.Context, spec index.CollectionSpec) error {
	args := []string{
		indexName(spec.Name),
		"ON", "HASH",
		"PREFIX", "1", docPrefix(spec.Name),
		"SCHEMA",
		fieldText, "TEXT",
		"tenant_id", "TAG",
	}
	for _, f := range spec.FilterFields {
		if f == "tenant_id" {
			continue
		}
		args = append(args, f, "TAG")
	}
	args = append(args,
		fieldVec, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(spec.Dimensions),
		"DISTANCE_METRIC", "COSINE",
		"M", strconv.Itoa(hnswM),
		"EF_CONSTRUCTION", strconv.Itoa(hnswEFConstruct),
	)

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return &index.Error{Op: index.OpEnsure, Err: err}
	}
	return nil
}

// ListCollections scans metadata keys and reads each collection's recorded
// identity. Enumeration relies on the recorded tenant/category, never on
// parsing collection names.
func (s *Store) ListCollections(ctx context.Context) ([]index.CollectionInfo, error) {
	keys, err := s.scan(ctx, metaKeyPrefix+"*"+metaKeySuffix)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	metas, err := s.hGetAllMulti(ctx, keys)
	if err != nil {
		return nil, err
	}

	infos := make([]index.CollectionInfo, 0, len(metas))
	for i, m := range metas {
		if len(m) == 0 {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(keys[i], metaKeyPrefix), metaKeySuffix)
		infos = append(infos, index.CollectionInfo{
			Name:     name,
			Tenant:   m["tenant"],
			Category: m["category"],
		})
	}
	return infos, nil
}

// CountDocuments returns the collection size via FT.SEARCH with LIMIT 0 0.
func (s *Store) CountDocuments(ctx context.Context, collection string) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(indexName(collection), "*", "LIMIT", "0", "0").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index name") {
			return 0, index.ErrCollectionNotFound
		}
		return 0, &index.Error{Op: index.OpCount, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

func (s *Store) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &index.Error{Op: index.OpList, Err: err}
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

func (s *Store) hGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	out := make([]map[string]string, len(results))
	for i, res := range results {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &index.Error{Op: index.OpList, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = m
	}
	return out, nil
}
