package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	"scamshield/pkg/backoff"
	"scamshield/pkg/cache"
	"scamshield/pkg/fusion"
	"scamshield/pkg/investigation"
	otelobs "scamshield/pkg/observability/otel"
	"scamshield/pkg/sources"
	"scamshield/pkg/structlog"
)

const serviceName = "investigator"

// per-IP request limiter (fixed window per key)
type rateLimiter struct {
	capacity int
	window   time.Duration
	mu       sync.Mutex
	store    map[string]bucket
}
type bucket struct {
	remaining int
	reset     time.Time
}

func newRateLimiter(capacity int, window time.Duration) *rateLimiter {
	return &rateLimiter{capacity: capacity, window: window, store: map[string]bucket{}}
}
func (r *rateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.store[key]
	now := time.Now()
	if !ok || now.After(b.reset) {
		r.store[key] = bucket{remaining: r.capacity - 1, reset: now.Add(r.window)}
		return true
	}
	if b.remaining <= 0 {
		r.store[key] = b
		return false
	}
	b.remaining--
	r.store[key] = b
	return true
}

var ipLimiter = newRateLimiter(envInt("INVESTIGATOR_IP_BURST", 120), time.Minute)

type investigateRequest struct {
	Value string `json:"value"`
	Type  string `json:"type"`
	Level string `json:"level,omitempty"`
}

type server struct {
	mgr       *investigation.Manager
	respCache *cache.ResponseCache
	logger    *structlog.Logger
}

func main() {
	port := envInt("INVESTIGATOR_PORT", 8080)
	logger := structlog.NewLogger(serviceName, structlog.LevelInfo, nil)

	shutdown := otelobs.InitTracer(serviceName)
	defer shutdown(context.Background())

	// optional redis for distributed source budgets and L2 cache
	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
	}

	respCache := cache.NewResponseCache(
		envInt("INVESTIGATOR_CACHE_CAPACITY", 4096),
		envDur("INVESTIGATOR_CACHE_FRESH_TTL", 15*time.Minute),
		envDur("INVESTIGATOR_CACHE_STALE_TTL", 2*time.Hour),
		rdb,
	)

	clients := sources.BuildAll(sources.RegistryConfig{
		Whois:           credFromEnv("WHOIS"),
		VirusTotal:      credFromEnv("VIRUSTOTAL"),
		Shodan:          credFromEnv("SHODAN"),
		AbuseIPDB:       credFromEnv("ABUSEIPDB"),
		IPInfo:          credFromEnv("IPINFO"),
		EmailRep:        credFromEnv("EMAILREP"),
		BreachDirectory: credFromEnv("BREACHDIRECTORY"),
		Numverify:       credFromEnv("NUMVERIFY"),
		OpenSanctions:   credFromEnv("OPENSANCTIONS"),
		Cache:           respCache,
		Redis:           rdb,
		Retry:           backoff.DefaultPolicy(),
	})

	engine, err := fusion.NewEngine(fusion.DefaultWeights())
	if err != nil {
		log.Fatalf("[investigator] fusion engine init: %v", err)
	}

	mgr := investigation.NewManager(clients, engine, investigation.Config{
		MaxConcurrent: int64(envInt("INVESTIGATOR_MAX_CONCURRENT", 5)),
		CacheTTL:      envDur("INVESTIGATOR_RESULT_TTL", time.Hour),
		Logger:        logger,
	})
	srv := &server{mgr: mgr, respCache: respCache, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/investigate", srv.handleInvestigate)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/stats", srv.handleStats)
	mux.Handle("/metrics", promhttp.Handler())

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !ipLimiter.Allow(ip) {
			http.Error(w, "rate limit", http.StatusTooManyRequests)
			return
		}
		mux.ServeHTTP(w, r)
	})
	h := otelobs.WrapHTTPHandler(serviceName, base)
	h = otelobs.HTTPTraceLogMiddleware(h)

	addr := fmt.Sprintf(":%d", port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.Printf("[investigator] shutdown error: %v", err)
		} else {
			log.Printf("[investigator] shutdown complete")
		}
	}()

	logger.Info("listening", structlog.Fields{"addr": addr, "sources": len(clients)})
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[investigator] server error: %v", err)
	}
}

func (s *server) handleInvestigate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req investigateRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	target := sources.Target{
		Value: strings.TrimSpace(req.Value),
		Type:  sources.TargetType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Level: sources.InvestigationLevel(strings.ToUpper(strings.TrimSpace(req.Level))),
	}
	res, err := s.mgr.Investigate(r.Context(), target)
	if err != nil {
		if errors.Is(err, investigation.ErrInvalidTarget) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.logger.Error("investigate failed", structlog.Fields{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"engine": s.mgr.Stats()}
	if s.respCache != nil {
		out["response_cache"] = s.respCache.SnapshotStats()
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func credFromEnv(prefix string) sources.Credential {
	return sources.Credential{
		APIKey:   os.Getenv(prefix + "_API_KEY"),
		Endpoint: os.Getenv(prefix + "_ENDPOINT"),
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		return host[:i]
	}
	return host
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
