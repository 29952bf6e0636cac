package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResponseCache stores normalized source payloads keyed by
// (sourceName, normalizedParams).
//
// Two freshness tiers: within FreshTTL a hit is fresh; between FreshTTL and
// StaleTTL it is served stale (callers downgrade such evidence to
// UNVERIFIED); past StaleTTL it is evicted lazily on the next lookup.
//
// Tier 1 is an in-memory LRU; tier 2 is Redis when a client is provided, so
// multiple investigator instances share warm responses.
type ResponseCache struct {
	lru      *lruStore
	rdb      *redis.Client
	freshTTL time.Duration
	staleTTL time.Duration
	stats    Stats
}

// Stats counts cache outcomes. Snapshot returns a copy safe to serialize.
type Stats struct {
	mu       sync.Mutex
	Hits     int64 `json:"hits"`
	Stale    int64 `json:"stale_hits"`
	Misses   int64 `json:"misses"`
	RedisHit int64 `json:"redis_hits"`
}

func (s *Stats) record(hit, stale, redis bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case hit && stale:
		s.Stale++
	case hit:
		s.Hits++
	default:
		s.Misses++
	}
	if redis {
		s.RedisHit++
	}
}

// Snapshot returns current counters without the lock.
func (s *Stats) Snapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int64{
		"hits":       s.Hits,
		"stale_hits": s.Stale,
		"misses":     s.Misses,
		"redis_hits": s.RedisHit,
	}
}

type envelope struct {
	Data     map[string]any `json:"data"`
	StoredAt time.Time      `json:"stored_at"`
}

// NewResponseCache creates a cache holding up to capacity entries in memory.
// rdb may be nil for single-instance deployments.
func NewResponseCache(capacity int, freshTTL, staleTTL time.Duration, rdb *redis.Client) *ResponseCache {
	if capacity <= 0 {
		capacity = 1024
	}
	if freshTTL <= 0 {
		freshTTL = 15 * time.Minute
	}
	if staleTTL < freshTTL {
		staleTTL = freshTTL
	}
	return &ResponseCache{
		lru:      newLRUStore(capacity),
		rdb:      rdb,
		freshTTL: freshTTL,
		staleTTL: staleTTL,
	}
}

// Key builds the canonical cache key for a source call.
func Key(sourceName string, params ...string) string {
	h := sha256.New()
	h.Write([]byte(sourceName))
	for _, p := range params {
		h.Write([]byte{0})
		h.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
	}
	return sourceName + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}

// Get returns (payload, fresh, ok). ok=false means absent or past StaleTTL
// (the entry is evicted on that miss check).
func (c *ResponseCache) Get(ctx context.Context, key string) (map[string]any, bool, bool) {
	if env, ok := c.lru.get(key, c.staleTTL); ok {
		fresh := time.Since(env.StoredAt) <= c.freshTTL
		c.stats.record(true, !fresh, false)
		return env.Data, fresh, true
	}

	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, "scamshield:rc:"+key).Result()
		if err == nil {
			var env envelope
			if json.Unmarshal([]byte(raw), &env) == nil && time.Since(env.StoredAt) <= c.staleTTL {
				// promote to L1
				c.lru.set(key, env)
				fresh := time.Since(env.StoredAt) <= c.freshTTL
				c.stats.record(true, !fresh, true)
				return env.Data, fresh, true
			}
		}
	}

	c.stats.record(false, false, false)
	return nil, false, false
}

// Set stores a payload in both tiers.
func (c *ResponseCache) Set(ctx context.Context, key string, data map[string]any) {
	env := envelope{Data: data, StoredAt: time.Now()}
	c.lru.set(key, env)
	if c.rdb != nil {
		if raw, err := json.Marshal(env); err == nil {
			_ = c.rdb.SetEx(ctx, "scamshield:rc:"+key, raw, c.staleTTL).Err()
		}
	}
}

// SnapshotStats returns cache hit/miss counters.
func (c *ResponseCache) SnapshotStats() map[string]int64 { return c.stats.Snapshot() }

// lruStore is a TTL-aware LRU: map + doubly-linked recency list.
type lruStore struct {
	capacity int
	mu       sync.Mutex
	items    map[string]*lruItem
	head     *lruItem
	tail     *lruItem
}

type lruItem struct {
	key        string
	env        envelope
	prev, next *lruItem
}

func newLRUStore(capacity int) *lruStore {
	return &lruStore{capacity: capacity, items: make(map[string]*lruItem, capacity)}
}

func (l *lruStore) get(key string, maxAge time.Duration) (envelope, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	it, ok := l.items[key]
	if !ok {
		return envelope{}, false
	}
	if time.Since(it.env.StoredAt) > maxAge {
		l.unlink(it)
		delete(l.items, key)
		return envelope{}, false
	}
	l.moveToFront(it)
	return it.env, true
}

func (l *lruStore) set(key string, env envelope) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if it, ok := l.items[key]; ok {
		it.env = env
		l.moveToFront(it)
		return
	}
	if len(l.items) >= l.capacity && l.tail != nil {
		delete(l.items, l.tail.key)
		l.unlink(l.tail)
	}
	it := &lruItem{key: key, env: env}
	l.items[key] = it
	l.pushFront(it)
}

func (l *lruStore) pushFront(it *lruItem) {
	it.prev = nil
	it.next = l.head
	if l.head != nil {
		l.head.prev = it
	}
	l.head = it
	if l.tail == nil {
		l.tail = it
	}
}

func (l *lruStore) unlink(it *lruItem) {
	if it.prev != nil {
		it.prev.next = it.next
	} else {
		l.head = it.next
	}
	if it.next != nil {
		it.next.prev = it.prev
	} else {
		l.tail = it.prev
	}
}

func (l *lruStore) moveToFront(it *lruItem) {
	l.unlink(it)
	l.pushFront(it)
}
