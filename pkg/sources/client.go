package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"scamshield/pkg/backoff"
	"scamshield/pkg/cache"
	"scamshield/pkg/circuitbreaker"
	"scamshield/pkg/ratelimit"
)

// Spec is everything a concrete source integration has to supply. All
// rate-limiting, caching, retry, and breaker behavior lives in Client so the
// ~9 integrations behave uniformly.
type Spec struct {
	Name        string
	Endpoint    string
	TargetTypes []TargetType
	Timeout     time.Duration // per-attempt ceiling

	// BuildRequest constructs the outbound request (URL params, auth headers).
	BuildRequest func(ctx context.Context, target Target) (*http.Request, error)
	// Normalize maps the raw body into the small named-field map the scoring
	// functions read. It must not retain the body.
	Normalize func(status int, body []byte) (map[string]any, error)
	// Succeeded is the source-specific success marker on top of HTTP 200.
	// Nil means any 2xx with a well-formed body counts.
	Succeeded func(status int, data map[string]any) bool
}

// Stats are per-client counters, owned by the client instance and updated
// under its own lock. Snapshot returns a copy for the /stats surface.
type Stats struct {
	mu                  sync.Mutex
	TotalRequests       int64
	SuccessfulRequests  int64
	FailedRequests      int64
	CachedRequests      int64
	RateLimitedRequests int64
}

// StatsSnapshot is an immutable copy of Stats.
type StatsSnapshot struct {
	TotalRequests       int64 `json:"total_requests"`
	SuccessfulRequests  int64 `json:"successful_requests"`
	FailedRequests      int64 `json:"failed_requests"`
	CachedRequests      int64 `json:"cached_requests"`
	RateLimitedRequests int64 `json:"rate_limited_requests"`
}

func (s *Stats) observe(r SourceResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalRequests++
	switch {
	case r.Cached:
		s.CachedRequests++
	case r.RateLimited:
		s.RateLimitedRequests++
	case r.Success:
		s.SuccessfulRequests++
	default:
		s.FailedRequests++
	}
}

// Snapshot returns current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		TotalRequests:       s.TotalRequests,
		SuccessfulRequests:  s.SuccessfulRequests,
		FailedRequests:      s.FailedRequests,
		CachedRequests:      s.CachedRequests,
		RateLimitedRequests: s.RateLimitedRequests,
	}
}

// Client wraps one external source behind the common fetch pipeline:
// cache -> rate limit -> breaker -> retry with backoff -> normalize -> cache.
type Client struct {
	spec    Spec
	httpc   *http.Client
	limiter ratelimit.Limiter
	cache   *cache.ResponseCache
	breaker *circuitbreaker.Breaker
	retry   backoff.Policy
	sleeper backoff.Sleeper
	stats   Stats
}

// Options configure a Client beyond its Spec.
type Options struct {
	Limiter ratelimit.Limiter
	Cache   *cache.ResponseCache
	Retry   backoff.Policy
	Sleeper backoff.Sleeper
	HTTPC   *http.Client
	Breaker *circuitbreaker.Breaker
}

// NewClient builds a source client. Missing options get safe defaults.
func NewClient(spec Spec, opts Options) *Client {
	if spec.Timeout <= 0 {
		spec.Timeout = 10 * time.Second
	}
	c := &Client{
		spec:    spec,
		httpc:   opts.HTTPC,
		limiter: opts.Limiter,
		cache:   opts.Cache,
		breaker: opts.Breaker,
		retry:   opts.Retry,
		sleeper: opts.Sleeper,
	}
	if c.httpc == nil {
		c.httpc = &http.Client{Timeout: spec.Timeout}
	}
	if c.limiter == nil {
		c.limiter = ratelimit.NewFixedWindow(60, time.Minute)
	}
	if c.retry.MaxAttempts == 0 {
		c.retry = backoff.DefaultPolicy()
	}
	if c.sleeper == nil {
		c.sleeper = backoff.RealSleeper{}
	}
	if c.breaker == nil {
		c.breaker = circuitbreaker.New(spec.Name, circuitbreaker.DefaultSettings())
	}
	return c
}

// Name returns the source name.
func (c *Client) Name() string { return c.spec.Name }

// Applicable reports whether this source can investigate the target type.
func (c *Client) Applicable(t TargetType) bool {
	for _, tt := range c.spec.TargetTypes {
		if tt == t {
			return true
		}
	}
	return false
}

// Stats returns a snapshot of this client's counters.
func (c *Client) Stats() StatsSnapshot { return c.stats.Snapshot() }

// Fetch executes one source call and always returns a SourceResult; failure
// modes are data, never errors. The result is recorded in the client stats.
func (c *Client) Fetch(ctx context.Context, target Target) SourceResult {
	res := c.fetch(ctx, target)
	c.stats.observe(res)
	return res
}

func (c *Client) fetch(ctx context.Context, target Target) SourceResult {
	start := time.Now()
	key := cache.Key(c.spec.Name, string(target.Type), target.Value)

	if c.cache != nil {
		if data, fresh, ok := c.cache.Get(ctx, key); ok {
			return SourceResult{
				SourceName: c.spec.Name,
				Success:    true,
				Data:       data,
				Latency:    time.Since(start),
				Cached:     true,
				Stale:      !fresh,
				FetchedAt:  time.Now(),
			}
		}
	}

	if !c.limiter.Allow() {
		return SourceResult{
			SourceName:  c.spec.Name,
			RateLimited: true,
			Err:         ErrKindRateLimited,
			ErrDetail:   fmt.Sprintf("retry after %s", c.limiter.RetryAfter().Round(time.Second)),
			Latency:     time.Since(start),
			FetchedAt:   time.Now(),
		}
	}

	if !c.breaker.Allow() {
		return SourceResult{
			SourceName: c.spec.Name,
			Err:        ErrKindCircuitOpen,
			ErrDetail:  "source short-circuited after repeated failures",
			Latency:    time.Since(start),
			FetchedAt:  time.Now(),
		}
	}

	var lastKind ErrorKind
	var lastDetail string
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleeper.Sleep(ctx, c.retry.Delay(attempt-1)); err != nil {
				lastKind, lastDetail = ErrKindTimeout, "canceled while backing off"
				break
			}
		}

		data, kind, detail := c.attempt(ctx, target)
		if kind == "" {
			c.breaker.Record(true)
			if c.cache != nil {
				c.cache.Set(ctx, key, data)
			}
			return SourceResult{
				SourceName: c.spec.Name,
				Success:    true,
				Data:       data,
				Latency:    time.Since(start),
				FetchedAt:  time.Now(),
			}
		}
		lastKind, lastDetail = kind, detail
		if !transient(kind) {
			break
		}
	}

	c.breaker.Record(false)
	return SourceResult{
		SourceName: c.spec.Name,
		Err:        lastKind,
		ErrDetail:  lastDetail,
		Latency:    time.Since(start),
		FetchedAt:  time.Now(),
	}
}

// attempt performs a single bounded network call. An empty ErrorKind means
// success.
func (c *Client) attempt(ctx context.Context, target Target) (map[string]any, ErrorKind, string) {
	actx, cancel := context.WithTimeout(ctx, c.spec.Timeout)
	defer cancel()

	req, err := c.spec.BuildRequest(actx, target)
	if err != nil {
		return nil, ErrKindBadResponse, fmt.Sprintf("build request: %v", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || actx.Err() != nil {
			return nil, ErrKindTimeout, err.Error()
		}
		return nil, ErrKindConnection, err.Error()
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, ErrKindConnection, fmt.Sprintf("read body: %v", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, ErrKindServer, fmt.Sprintf("upstream %d", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		// Upstream throttled us even though our local budget had room.
		return nil, ErrKindServer, "upstream 429"
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrKindAuth, fmt.Sprintf("upstream %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, ErrKindBadResponse, fmt.Sprintf("upstream %d", resp.StatusCode)
	}

	data, err := c.spec.Normalize(resp.StatusCode, body)
	if err != nil {
		return nil, ErrKindBadResponse, fmt.Sprintf("normalize: %v", err)
	}
	if c.spec.Succeeded != nil && !c.spec.Succeeded(resp.StatusCode, data) {
		return nil, ErrKindBadResponse, "source reported unsuccessful lookup"
	}
	return data, "", ""
}

// transient reports whether a failure kind is worth retrying.
func transient(k ErrorKind) bool {
	switch k {
	case ErrKindTimeout, ErrKindConnection, ErrKindServer:
		return true
	}
	return false
}
