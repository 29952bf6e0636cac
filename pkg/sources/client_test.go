package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"scamshield/pkg/backoff"
	"scamshield/pkg/cache"
	"scamshield/pkg/ratelimit"
)

// fakeSleeper counts backoff waits without spending wall time.
type fakeSleeper struct {
	calls int
	slept time.Duration
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.calls++
	f.slept += d
	return ctx.Err()
}

func testSpec(endpoint string) Spec {
	return Spec{
		Name:        "testsource",
		Endpoint:    endpoint,
		TargetTypes: []TargetType{TargetDomain},
		Timeout:     2 * time.Second,
		BuildRequest: func(ctx context.Context, target Target) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?q="+target.Value, nil)
		},
		Normalize: func(status int, body []byte) (map[string]any, error) {
			return decodeJSON(body)
		},
	}
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"score": 7}`))
	}))
	defer srv.Close()

	c := NewClient(testSpec(srv.URL), Options{Sleeper: &fakeSleeper{}})
	res := c.Fetch(context.Background(), Target{Type: TargetDomain, Value: "example.com"})

	if !res.Success {
		t.Fatalf("Fetch failed: %s %s", res.Err, res.ErrDetail)
	}
	if res.Data["score"] != 7.0 {
		t.Errorf("data = %v", res.Data)
	}
	if res.Cached {
		t.Error("first fetch marked cached")
	}
	snap := c.Stats()
	if snap.TotalRequests != 1 || snap.SuccessfulRequests != 1 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"score": 1}`))
	}))
	defer srv.Close()

	sleeper := &fakeSleeper{}
	c := NewClient(testSpec(srv.URL), Options{
		Retry:   backoff.Policy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, MaxAttempts: 3},
		Sleeper: sleeper,
	})
	res := c.Fetch(context.Background(), Target{Type: TargetDomain, Value: "example.com"})

	if !res.Success {
		t.Fatalf("expected recovery on third attempt, got %s %s", res.Err, res.ErrDetail)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hit %d times, want 3", got)
	}
	if sleeper.calls != 2 {
		t.Errorf("slept %d times between attempts, want 2", sleeper.calls)
	}
}

func TestFetchExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testSpec(srv.URL), Options{
		Retry:   backoff.Policy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, MaxAttempts: 3},
		Sleeper: &fakeSleeper{},
	})
	res := c.Fetch(context.Background(), Target{Type: TargetDomain, Value: "example.com"})

	if res.Success {
		t.Fatal("expected failure after exhausting retries")
	}
	if res.Err != ErrKindServer {
		t.Errorf("error kind = %s, want %s", res.Err, ErrKindServer)
	}
	if c.Stats().FailedRequests != 1 {
		t.Errorf("stats = %+v", c.Stats())
	}
}

func TestFetchAuthFailureNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(testSpec(srv.URL), Options{
		Retry:   backoff.Policy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, MaxAttempts: 3},
		Sleeper: &fakeSleeper{},
	})
	res := c.Fetch(context.Background(), Target{Type: TargetDomain, Value: "example.com"})

	if res.Success {
		t.Fatal("expected auth failure")
	}
	if res.Err != ErrKindAuth {
		t.Errorf("error kind = %s, want %s", res.Err, ErrKindAuth)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("auth failure hit the server %d times, want 1 (no retry)", got)
	}
}

func TestFetchRateLimited(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"score": 1}`))
	}))
	defer srv.Close()

	c := NewClient(testSpec(srv.URL), Options{
		Limiter: ratelimit.NewFixedWindow(1, time.Hour),
		Sleeper: &fakeSleeper{},
	})
	first := c.Fetch(context.Background(), Target{Type: TargetDomain, Value: "a.com"})
	second := c.Fetch(context.Background(), Target{Type: TargetDomain, Value: "b.com"})

	if !first.Success {
		t.Fatalf("first fetch failed: %s", first.Err)
	}
	if second.Success || !second.RateLimited {
		t.Fatalf("second fetch should be rate limited, got %+v", second)
	}
	if second.Err != ErrKindRateLimited {
		t.Errorf("error kind = %s, want %s", second.Err, ErrKindRateLimited)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("rate-limited fetch reached the server (%d hits)", got)
	}
	if c.Stats().RateLimitedRequests != 1 {
		t.Errorf("stats = %+v", c.Stats())
	}
}

func TestFetchServesCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"score": 3}`))
	}))
	defer srv.Close()

	rc := cache.NewResponseCache(16, time.Minute, time.Hour, nil)
	c := NewClient(testSpec(srv.URL), Options{Cache: rc, Sleeper: &fakeSleeper{}})

	target := Target{Type: TargetDomain, Value: "example.com"}
	first := c.Fetch(context.Background(), target)
	second := c.Fetch(context.Background(), target)

	if !first.Success || first.Cached {
		t.Fatalf("first = %+v", first)
	}
	if !second.Success || !second.Cached {
		t.Fatalf("second = %+v", second)
	}
	if second.Stale {
		t.Error("fresh cache hit marked stale")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
	snap := c.Stats()
	if snap.CachedRequests != 1 || snap.SuccessfulRequests != 1 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestFetchStaleCacheMarked(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"score": 3}`))
	}))
	defer srv.Close()

	rc := cache.NewResponseCache(16, 5*time.Millisecond, time.Hour, nil)
	c := NewClient(testSpec(srv.URL), Options{Cache: rc, Sleeper: &fakeSleeper{}})

	target := Target{Type: TargetDomain, Value: "example.com"}
	c.Fetch(context.Background(), target)
	time.Sleep(10 * time.Millisecond)
	res := c.Fetch(context.Background(), target)

	if !res.Success || !res.Cached || !res.Stale {
		t.Fatalf("expected stale cache hit, got %+v", res)
	}
}

func TestBreakerShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testSpec(srv.URL), Options{
		Retry:   backoff.Policy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, MaxAttempts: 1},
		Sleeper: &fakeSleeper{},
	})
	// default breaker opens after 5 consecutive failures
	for i := 0; i < 5; i++ {
		c.Fetch(context.Background(), Target{Type: TargetDomain, Value: "example.com"})
	}
	res := c.Fetch(context.Background(), Target{Type: TargetDomain, Value: "example.com"})
	if res.Err != ErrKindCircuitOpen {
		t.Fatalf("error kind = %s, want %s", res.Err, ErrKindCircuitOpen)
	}
}

func TestApplicable(t *testing.T) {
	c := NewClient(testSpec("http://unused"), Options{})
	if !c.Applicable(TargetDomain) {
		t.Error("domain should be applicable")
	}
	if c.Applicable(TargetPhone) {
		t.Error("phone should not be applicable")
	}
}
