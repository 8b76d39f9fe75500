package cache

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/subgrab/subgrab/internal/config"
)

// Options configures a cache instance.
type Options struct {
	// Size bounds the number of entries.
	Size int

	// TTL is the lifetime of an entry from its last write.
	TTL time.Duration

	// OnEvict observes size-bound evictions. Optional.
	OnEvict EvictCallback

	// Logger receives backend errors. Optional.
	Logger Logger

	// Redis is only read by the "redis" backend.
	Redis RedisOptions

	// Group labels the cache_* metrics. When set, the cache is instrumented
	// and its keys are namespaced under the group in shared backends.
	Group string
}

// RedisOptions locates the Redis/Valkey server backing a cache.
type RedisOptions struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// Backend builds a Cache from Options.
type Backend func(opts Options) (Cache, error)

var (
	mu       sync.RWMutex
	backends = make(map[string]Backend)
)

// Register makes a backend available to New under name. It panics on a nil
// backend or a duplicate name.
func Register(name string, b Backend) {
	mu.Lock()
	defer mu.Unlock()

	if b == nil {
		panic("cache: Register backend is nil")
	}
	if _, exists := backends[name]; exists {
		panic(fmt.Sprintf("cache: backend %q already registered", name))
	}
	backends[name] = b
}

// New builds a cache with the named backend. A non-empty Group wraps the
// result with hit, miss and eviction counters and a scrape-time entries gauge.
func New(name string, opts Options) (Cache, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("cache: unknown backend %q (registered: %v)", name, Backends())
	}

	if opts.Group == "" {
		return b(opts)
	}

	group := opts.Group
	observer := opts.OnEvict
	opts.OnEvict = func(key string, value []byte) {
		EvictionsTotal.WithLabelValues(group).Inc()
		if observer != nil {
			observer(key, value)
		}
	}

	inner, err := b(opts)
	if err != nil {
		return nil, err
	}
	return newInstrumentedCache(inner, group), nil
}

// FromConfig builds the cache described by cfg.Cache for group. Failures are
// logged through the process logger.
func FromConfig(cfg *config.Config, group string) (Cache, error) {
	backend := cfg.Cache.Provider
	if backend == "" {
		backend = "memory"
	}
	size := cfg.Cache.Size
	if size <= 0 {
		size = 500
	}

	return New(backend, Options{
		Size:   size,
		TTL:    config.Duration(cfg.Cache.TTL, 10*time.Minute),
		Logger: NewZerologLogger(config.GetLogger(), group),
		Redis: RedisOptions{
			Address:   cfg.Cache.Redis.Address,
			Password:  cfg.Cache.Redis.Password,
			DB:        cfg.Cache.Redis.DB,
			KeyPrefix: cfg.Cache.Redis.KeyPrefix,
		},
		Group: group,
	})
}

// Backends lists registered backend names in sorted order.
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
