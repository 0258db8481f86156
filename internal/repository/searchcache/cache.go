package searchcache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/recall/internal/domain"
)

// Defaults match the documented cache behavior: results stay hot for five
// minutes and at most a hundred distinct queries are retained per collection.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 100
)

type entry struct {
	value      domain.SearchResult
	insertedAt time.Time
	seq        uint64
}

// Cache is a process-local TTL cache for search results. Expired entries are
// never served; space is reclaimed on Put, first by dropping expired entries,
// then by dropping the oldest inserts until the cap holds.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	nextSeq    uint64

	eventsTotal *prometheus.CounterVec
}

// New creates a cache. Non-positive ttl or maxEntries fall back to defaults.
// eventsTotal is a counter vec with label "result" ("hit"/"miss"); nil disables it.
func New(ttl time.Duration, maxEntries int, eventsTotal *prometheus.CounterVec) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		entries:     make(map[string]entry),
		ttl:         ttl,
		maxEntries:  maxEntries,
		eventsTotal: eventsTotal,
	}
}

// Get returns the cached result for key. Entries at or past the TTL are
// reported as absent even before a sweep reclaims them.
func (c *Cache) Get(key string) (domain.SearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Since(e.insertedAt) >= c.ttl {
		c.incEvent("miss")
		return domain.SearchResult{}, false
	}
	c.incEvent("hit")
	return e.value, true
}

// Put stores value under key with a fresh timestamp, then sweeps if the cache
// grew past its cap.
func (c *Cache) Put(key string, value domain.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSeq++
	c.entries[key] = entry{value: value, insertedAt: time.Now(), seq: c.nextSeq}

	if len(c.entries) > c.maxEntries {
		c.sweep()
	}
}

// Len reports the number of stored entries, including any expired ones that
// have not been swept yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweep drops expired entries, then the oldest inserts until the cap holds.
// Caller holds c.mu.
func (c *Cache) sweep() {
	for key, e := range c.entries {
		if time.Since(e.insertedAt) >= c.ttl {
			delete(c.entries, key)
		}
	}

	for len(c.entries) > c.maxEntries {
		oldestKey := ""
		oldestSeq := c.nextSeq + 1
		for key, e := range c.entries {
			if e.seq < oldestSeq {
				oldestSeq = e.seq
				oldestKey = key
			}
		}
		delete(c.entries, oldestKey)
	}
}

func (c *Cache) incEvent(result string) {
	if c.eventsTotal != nil {
		c.eventsTotal.WithLabelValues(result).Inc()
	}
}

// Key derives a stable cache key from the query parameters. Filter order does
// not matter: pairs are sorted by key before hashing.
func Key(query string, topK int, filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(query)
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(topK))
	for _, k := range keys {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(filters[k])
	}

	h := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(h[:])
}
