package recall

import (
	"time"

	"go.uber.org/zap"
)

// defaultDimensions matches OpenAI text-embedding-3-small.
const defaultDimensions = 1536

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	driver   string // "redis", "bolt", or "memory"
	addrs    []string
	password string
	path     string

	embedder Embedder

	dimensions   int
	cacheTTL     time.Duration
	cacheSize    int
	timeout      time.Duration
	filterFields []string

	logger *zap.Logger
}

// WithRedis configures the client to connect to a Redis or Valkey instance
// with the search module loaded.
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithBolt configures the client to persist into an embedded bbolt file.
// Suited to single-node deployments without a Redis alongside.
func WithBolt(path string) Option {
	return func(c *clientConfig) {
		c.driver = "bolt"
		c.path = path
	}
}

// WithMemory configures the client to use a process-local in-memory index.
// Contents are lost on Close; intended for tests and small working sets.
func WithMemory() Option {
	return func(c *clientConfig) {
		c.driver = "memory"
	}
}

// WithEmbedder sets the text embedding provider. Without one, document
// writes fail and searches degrade to empty results.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithDimensions sets the embedding width recorded on provisioned
// collections. Defaults to 1536 (text-embedding-3-small).
func WithDimensions(dim int) Option {
	return func(c *clientConfig) {
		c.dimensions = dim
	}
}

// WithSearchCache shapes the per-collection search result cache.
func WithSearchCache(ttl time.Duration, maxEntries int) Option {
	return func(c *clientConfig) {
		c.cacheTTL = ttl
		c.cacheSize = maxEntries
	}
}

// WithTimeout bounds each index and embedding call.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithFilterFields lists metadata keys that must be filterable on backends
// with declared schemas. The tenant tag is always filterable.
func WithFilterFields(fields ...string) Option {
	return func(c *clientConfig) {
		c.filterFields = fields
	}
}

// WithLogger enables structured logging for client operations.
// Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
