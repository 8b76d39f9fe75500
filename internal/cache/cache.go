// Package cache memoizes provider responses. Backends register themselves by
// name and are selected from configuration at startup.
package cache

// EvictCallback is invoked with the key of an entry pushed out by the size
// bound. Backends that evict server-side pass a nil value.
type EvictCallback func(key string, value []byte)

// Cache is a bounded key/value store with per-entry expiry.
type Cache interface {
	// Get returns the stored value and true, or nil and false on a miss.
	Get(key string) ([]byte, bool)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte)

	// Contains reports whether key is present without refreshing its recency.
	Contains(key string) bool

	// Len returns the number of live entries.
	Len() int

	// Close releases connections held by the backend.
	Close() error
}

// Logger receives backend failures that cannot be returned to the caller,
// such as a Redis timeout inside Get.
type Logger interface {
	Error(msg string, err error)
}
