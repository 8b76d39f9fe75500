package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "subgrab:"
	opTimeout        = 2 * time.Second
)

func init() {
	Register("redis", newRedisCache)
}

// redisCache stores entries in Redis/Valkey 7.4+ (per-field hash expiry).
//
// Each cache uses two keys:
//
//   - <prefix><group>:data, a hash of key to value with HPEXPIRE per field
//   - <prefix><group>:lru, a sorted set of key to last access in microseconds
//
// Reads and writes run as Lua scripts so touching and evicting are atomic.
// Sorted-set members whose hash field already expired are dropped during
// eviction.
type redisCache struct {
	client  *redis.Client
	ttl     time.Duration
	maxSize int
	onEvict EvictCallback
	logger  Logger
	dataKey string
	lruKey  string
}

// KEYS: data hash, lru set. ARGV: now (µs), member.
var getAndTouch = redis.NewScript(`
local val = redis.call('HGET', KEYS[1], ARGV[2])
if val then
    redis.call('ZADD', KEYS[2], ARGV[1], ARGV[2])
end
return val
`)

// KEYS: data hash, lru set. ARGV: value, now (µs), member, max size, ttl (ms).
// Returns the evicted members.
var setAndEvict = redis.NewScript(`
local member  = ARGV[3]
local maxSize = tonumber(ARGV[4])
local ttlMs   = tonumber(ARGV[5])

redis.call('HSET', KEYS[1], member, ARGV[1])
redis.call('HPEXPIRE', KEYS[1], ttlMs, 'FIELDS', 1, member)
redis.call('ZADD', KEYS[2], ARGV[2], member)

local size = redis.call('ZCARD', KEYS[2])
local evicted = {}
while size > maxSize do
    local oldest = redis.call('ZPOPMIN', KEYS[2], 1)
    if #oldest == 0 then break end
    redis.call('HDEL', KEYS[1], oldest[1])
    table.insert(evicted, oldest[1])
    size = size - 1
end
return evicted
`)

func newRedisCache(opts Options) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Redis.Address,
		Password: opts.Redis.Password,
		DB:       opts.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	namespace := redisNamespace(opts.Redis.KeyPrefix, opts.Group)
	return &redisCache{
		client:  client,
		ttl:     opts.TTL,
		maxSize: opts.Size,
		onEvict: opts.OnEvict,
		logger:  opts.Logger,
		dataKey: namespace + "data",
		lruKey:  namespace + "lru",
	}, nil
}

// redisNamespace returns the key prefix shared by a cache's two Redis keys.
func redisNamespace(prefix, group string) string {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if group != "" {
		prefix += group + ":"
	}
	return prefix
}

func (r *redisCache) keys() []string {
	return []string{r.dataKey, r.lruKey}
}

func (r *redisCache) report(msg string, err error) {
	if r.logger != nil {
		r.logger.Error(msg, err)
	}
}

func (r *redisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := strconv.FormatInt(time.Now().UnixMicro(), 10)
	result, err := getAndTouch.Run(ctx, r.client, r.keys(), now, key).Text()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.report("redis cache Get failed", err)
		}
		return nil, false
	}
	return []byte(result), true
}

func (r *redisCache) Set(key string, value []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	evicted, err := setAndEvict.Run(ctx, r.client, r.keys(),
		value,
		strconv.FormatInt(time.Now().UnixMicro(), 10),
		key,
		strconv.Itoa(r.maxSize),
		strconv.FormatInt(r.ttl.Milliseconds(), 10),
	).StringSlice()
	if err != nil {
		r.report("redis cache Set failed", err)
		return
	}

	if r.onEvict == nil {
		return
	}
	for _, k := range evicted {
		r.onEvict(k, nil)
	}
}

func (r *redisCache) Contains(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	found, err := r.client.HExists(ctx, r.dataKey, key).Result()
	if err != nil {
		r.report("redis cache Contains failed", err)
		return false
	}
	return found
}

func (r *redisCache) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	n, err := r.client.HLen(ctx, r.dataKey).Result()
	if err != nil {
		r.report("redis cache Len failed", err)
		return 0
	}
	return int(n)
}

func (r *redisCache) Close() error {
	return r.client.Close()
}
