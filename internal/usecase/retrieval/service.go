package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/index"
	"github.com/kailas-cloud/recall/internal/repository/searchcache"
)

// DefaultTimeout bounds every index and embedding call issued by the service.
const DefaultTimeout = 5 * time.Second

// Metrics holds the counters the retrieval layer reports. Any nil field is
// simply not incremented, so tests can pass nil.
type Metrics struct {
	// Searches has labels: tenant, mode ("hybrid"/"vector").
	Searches *prometheus.CounterVec
	// Duration has labels: tenant, mode. Observed on cache misses only.
	Duration *prometheus.HistogramVec
	// Degraded has label: tenant. Incremented when a search returns empty
	// because the index or embedder failed.
	Degraded *prometheus.CounterVec
	// CacheEvents has label: result ("hit"/"miss").
	CacheEvents *prometheus.CounterVec
}

// Config tunes the service. Zero values fall back to defaults.
type Config struct {
	// Dimensions is the embedding width recorded on provisioned collections.
	Dimensions int
	// CacheTTL and CacheSize shape the per-collection result cache.
	CacheTTL  time.Duration
	CacheSize int
	// Timeout bounds each index and embedding call.
	Timeout time.Duration
	// FilterFields lists metadata keys that must be filterable on backends
	// with declared schemas. The tenant tag is always filterable.
	FilterFields []string
}

// Service hands out tenant collections and owns the shared registries.
// Collections are provisioned exactly once per (tenant, category) and the
// same handle is reused for the process lifetime.
type Service struct {
	idx      Index
	embedder Embedder
	cfg      Config
	metrics  *Metrics
	logger   *zap.Logger

	mu    sync.Mutex
	colls map[string]*collEntry
}

type collEntry struct {
	once sync.Once
	coll *Collection
	err  error
}

// New creates a retrieval service. metrics may be nil.
func New(idx Index, embedder Embedder, cfg Config, metrics *Metrics, logger *zap.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = searchcache.DefaultTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = searchcache.DefaultMaxEntries
	}
	return &Service{
		idx:      idx,
		embedder: embedder,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		colls:    make(map[string]*collEntry),
	}
}

// Collection returns the handle for (tenant, category), provisioning the
// backing partition on first access. Concurrent first calls provision once
// and share the outcome; a failed provisioning is forgotten so a later call
// can retry.
func (s *Service) Collection(ctx context.Context, tenant, category string) (*Collection, error) {
	if err := domain.ValidateTenant(tenant); err != nil {
		return nil, err
	}
	if err := domain.ValidateCategory(category); err != nil {
		return nil, err
	}
	name := domain.CollectionName(tenant, category)

	s.mu.Lock()
	e, ok := s.colls[name]
	if !ok {
		e = &collEntry{}
		s.colls[name] = e
	}
	s.mu.Unlock()

	e.once.Do(func() {
		coll, err := s.provision(ctx, tenant, category, name)
		// Published under the lock so Stats never observes a half-built entry.
		s.mu.Lock()
		e.coll, e.err = coll, err
		s.mu.Unlock()
	})

	s.mu.Lock()
	coll, err := e.coll, e.err
	if err != nil && s.colls[name] == e {
		delete(s.colls, name)
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return coll, nil
}

func (s *Service) provision(ctx context.Context, tenant, category, name string) (*Collection, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	filterFields := append([]string{domain.TenantTagKey}, s.cfg.FilterFields...)
	spec := index.CollectionSpec{
		Name:         name,
		Tenant:       tenant,
		Category:     category,
		Dimensions:   s.cfg.Dimensions,
		FilterFields: filterFields,
	}
	if err := s.idx.EnsureCollection(ctx, spec); err != nil {
		return nil, fmt.Errorf("provision collection %s: %w", name, err)
	}

	s.logger.Info("Collection ready",
		zap.String("tenant", tenant),
		zap.String("category", category))

	var cacheEvents *prometheus.CounterVec
	if s.metrics != nil {
		cacheEvents = s.metrics.CacheEvents
	}

	return &Collection{
		tenant:   tenant,
		category: category,
		name:     name,
		idx:      s.idx,
		embedder: s.embedder,
		cache:    searchcache.New(s.cfg.CacheTTL, s.cfg.CacheSize, cacheEvents),
		timeout:  s.cfg.Timeout,
		metrics:  s.metrics,
		logger:   s.logger.With(zap.String("collection", name)),
	}, nil
}

// ListCollections returns the physical collection names owned by tenant,
// sorted. Ownership comes from the metadata recorded at provisioning, so a
// tenant id that happens to prefix another never leaks foreign collections.
func (s *Service) ListCollections(ctx context.Context, tenant string) ([]string, error) {
	if err := domain.ValidateTenant(tenant); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	infos, err := s.idx.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	var names []string
	for _, info := range infos {
		if info.Tenant == tenant {
			names = append(names, info.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Stats reports totals across the index, the collection registry, and the
// per-collection result caches.
func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	infos, err := s.idx.ListCollections(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("list collections: %w", err)
	}

	s.mu.Lock()
	cached := 0
	entries := 0
	for _, e := range s.colls {
		if e.coll == nil {
			continue
		}
		cached++
		entries += e.coll.cache.Len()
	}
	s.mu.Unlock()

	return domain.Stats{
		TotalCollections:  len(infos),
		CachedCollections: cached,
		CacheEntries:      entries,
	}, nil
}
