package investigation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scamshield/pkg/sources"
)

// ResultCache memoizes complete investigation results by
// (value, type, level). Within the TTL, concurrent callers for the same key
// share the single in-flight computation instead of each re-running the
// fan-out; the stored value is last-writer-wins.
type ResultCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]resultEntry
	flights map[string]*flight
}

type resultEntry struct {
	res      *Result
	storedAt time.Time
}

type flight struct {
	done chan struct{}
	res  *Result
	err  error
}

// NewResultCache creates a cache with the given TTL (default 1h).
func NewResultCache(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResultCache{
		ttl:     ttl,
		entries: make(map[string]resultEntry),
		flights: make(map[string]*flight),
	}
}

func cacheKey(t sources.Target) string {
	return fmt.Sprintf("%s|%s|%s", t.Value, t.Type, t.Level)
}

// GetOrCompute returns the cached result for the target if fresh, otherwise
// runs compute (once across concurrent callers) and stores the outcome.
// The second return reports whether the result came from cache.
func (c *ResultCache) GetOrCompute(ctx context.Context, target sources.Target, compute func() (*Result, error)) (*Result, bool, error) {
	key := cacheKey(target)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if time.Since(e.storedAt) <= c.ttl {
			c.mu.Unlock()
			return e.res, true, nil
		}
		delete(c.entries, key)
	}
	if f, ok := c.flights[key]; ok {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.res, f.res != nil, f.err
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	f := &flight{done: make(chan struct{})}
	c.flights[key] = f
	c.mu.Unlock()

	res, err := compute()
	f.res, f.err = res, err

	c.mu.Lock()
	if err == nil && res != nil {
		c.entries[key] = resultEntry{res: res, storedAt: time.Now()}
	}
	delete(c.flights, key)
	c.mu.Unlock()
	close(f.done)

	return res, false, err
}

// Len reports how many fresh entries the cache currently holds.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if time.Since(e.storedAt) <= c.ttl {
			n++
		}
	}
	return n
}
