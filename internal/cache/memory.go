package cache

import (
	"errors"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

func init() {
	Register("memory", newMemoryCache)
}

// memoryCache holds relayed search bodies in process. Values are copied on
// the way in and out, so a handler writing a cached body never shares its
// backing array with the cache.
type memoryCache struct {
	bodies *lru.LRU[string, []byte]
}

func newMemoryCache(opts Options) (Cache, error) {
	if opts.Size < 0 {
		return nil, errors.New("memory cache size must not be negative")
	}

	var onEvict lru.EvictCallback[string, []byte]
	if opts.OnEvict != nil {
		onEvict = lru.EvictCallback[string, []byte](opts.OnEvict)
	}
	// Size 0 leaves the LRU unbounded; only the TTL limits it then.
	return &memoryCache{bodies: lru.NewLRU(opts.Size, onEvict, opts.TTL)}, nil
}

func (m *memoryCache) Get(key string) ([]byte, bool) {
	body, ok := m.bodies.Get(key)
	if !ok {
		return nil, false
	}
	return slices.Clone(body), true
}

func (m *memoryCache) Set(key string, value []byte) {
	m.bodies.Add(key, slices.Clone(value))
}

func (m *memoryCache) Contains(key string) bool {
	return m.bodies.Contains(key)
}

func (m *memoryCache) Len() int {
	return m.bodies.Len()
}

// Close is a no-op; nothing outlives the process.
func (m *memoryCache) Close() error {
	return nil
}
