package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache is a size-bounded LRU cache of days with TTL expiration.
type MemoryCache struct {
	cache *lru.Cache[string, memoryEntry]
	ttl   time.Duration

	mu     sync.Mutex
	hits   uint64
	misses uint64
}

type memoryEntry struct {
	day       DailyWeather
	expiresAt time.Time
}

// CacheStats are hit/miss counters for observability.
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

// NewMemoryCache creates an LRU cache holding at most size days. A ttl of 0 disables expiry.
func NewMemoryCache(size int, ttl time.Duration) (*MemoryCache, error) {
	c, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{cache: c, ttl: ttl}, nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (DailyWeather, bool) {
	entry, ok := c.cache.Get(key)
	if ok && c.ttl > 0 && time.Now().After(entry.expiresAt) {
		c.cache.Remove(key)
		ok = false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.misses++
		return DailyWeather{}, false
	}
	c.hits++
	return entry.day, true
}

func (c *MemoryCache) Set(_ context.Context, key string, day DailyWeather) {
	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}
	c.cache.Add(key, memoryEntry{day: day, expiresAt: expiresAt})
}

// Stats returns current cache statistics.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: c.cache.Len()}
}

// CleanupExpired removes all expired entries and returns how many were dropped.
// This is O(n); the scheduler runs it periodically.
func (c *MemoryCache) CleanupExpired() int {
	if c.ttl == 0 {
		return 0
	}
	now := time.Now()
	removed := 0
	for _, key := range c.cache.Keys() {
		if entry, ok := c.cache.Peek(key); ok && now.After(entry.expiresAt) {
			c.cache.Remove(key)
			removed++
		}
	}
	return removed
}

// RedisCache shares cached days between service replicas.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func redisKey(key string) string {
	return "weather:day:" + key
}

func (r *RedisCache) Get(ctx context.Context, key string) (DailyWeather, bool) {
	data, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if err == redis.Nil {
		return DailyWeather{}, false
	}
	if err != nil {
		log.Printf("weather cache: redis GET %s failed: %v", key, err)
		return DailyWeather{}, false
	}

	var day DailyWeather
	if err := json.Unmarshal(data, &day); err != nil {
		log.Printf("weather cache: corrupt entry %s: %v", key, err)
		return DailyWeather{}, false
	}
	return day, true
}

func (r *RedisCache) Set(ctx context.Context, key string, day DailyWeather) {
	data, err := json.Marshal(day)
	if err != nil {
		log.Printf("weather cache: marshal %s failed: %v", key, err)
		return
	}
	if err := r.client.Set(ctx, redisKey(key), data, r.ttl).Err(); err != nil {
		log.Printf("weather cache: redis SET %s failed: %v", key, err)
	}
}

// Close releases the Redis connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
