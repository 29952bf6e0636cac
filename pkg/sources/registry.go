package sources

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"scamshield/pkg/backoff"
	"scamshield/pkg/cache"
	"scamshield/pkg/ratelimit"
)

// Credential holds the auth material and optional endpoint override for one
// source. An empty APIKey is allowed; the call will fail with an auth error
// and the investigation degrades gracefully.
type Credential struct {
	APIKey   string
	Endpoint string // override for tests / proxies; empty uses the default
}

// RegistryConfig wires the shared infrastructure into every source client.
type RegistryConfig struct {
	Whois           Credential
	VirusTotal      Credential
	Shodan          Credential
	AbuseIPDB       Credential
	IPInfo          Credential
	EmailRep        Credential
	BreachDirectory Credential
	Numverify       Credential
	OpenSanctions   Credential

	Cache   *cache.ResponseCache
	Redis   *redis.Client // non-nil switches limiters to the distributed kind
	Retry   backoff.Policy
	Sleeper backoff.Sleeper
}

// rateBudget is the per-source request budget. Providers differ wildly, so
// each gets its own numbers.
type rateBudget struct {
	max    int
	window time.Duration
}

var defaultBudgets = map[string]rateBudget{
	SourceWhois:           {30, time.Minute},
	SourceVirusTotal:      {4, time.Minute},
	SourceShodan:          {60, time.Minute},
	SourceAbuseIPDB:       {30, time.Minute},
	SourceIPInfo:          {1000, time.Minute},
	SourceEmailRep:        {10, time.Minute},
	SourceBreachDirectory: {10, time.Minute},
	SourceNumverify:       {60, time.Minute},
	SourceOpenSanctions:   {30, time.Minute},
}

// Source names, used in results, evidence attribution, and metrics labels.
const (
	SourceWhois           = "whois"
	SourceVirusTotal      = "virustotal"
	SourceShodan          = "shodan"
	SourceAbuseIPDB       = "abuseipdb"
	SourceIPInfo          = "ipinfo"
	SourceEmailRep        = "emailrep"
	SourceBreachDirectory = "breachdirectory"
	SourceNumverify       = "numverify"
	SourceOpenSanctions   = "opensanctions"
)

// BuildAll constructs the full set of source clients with per-source limiters
// and the shared cache.
func BuildAll(cfg RegistryConfig) []*Client {
	mk := func(spec Spec) *Client {
		b := defaultBudgets[spec.Name]
		var lim ratelimit.Limiter
		if cfg.Redis != nil {
			lim = ratelimit.NewDistributedLimiter(cfg.Redis, spec.Name, int64(b.max), b.window)
		} else {
			lim = ratelimit.NewFixedWindow(b.max, b.window)
		}
		return NewClient(spec, Options{
			Limiter: lim,
			Cache:   cfg.Cache,
			Retry:   cfg.Retry,
			Sleeper: cfg.Sleeper,
		})
	}
	return []*Client{
		mk(whoisSpec(cfg.Whois)),
		mk(virusTotalSpec(cfg.VirusTotal)),
		mk(shodanSpec(cfg.Shodan)),
		mk(abuseIPDBSpec(cfg.AbuseIPDB)),
		mk(ipInfoSpec(cfg.IPInfo)),
		mk(emailRepSpec(cfg.EmailRep)),
		mk(breachDirectorySpec(cfg.BreachDirectory)),
		mk(numverifySpec(cfg.Numverify)),
		mk(openSanctionsSpec(cfg.OpenSanctions)),
	}
}

// domainOf extracts the registrable host from any target kind that carries
// one: the domain itself, a URL's host, or an email's domain part.
func domainOf(target Target) string {
	switch target.Type {
	case TargetDomain:
		return strings.ToLower(target.Value)
	case TargetURL:
		if u, err := url.Parse(target.Value); err == nil && u.Host != "" {
			return strings.ToLower(u.Hostname())
		}
	case TargetEmail:
		if addr, err := mail.ParseAddress(target.Value); err == nil {
			if i := strings.LastIndex(addr.Address, "@"); i >= 0 {
				return strings.ToLower(addr.Address[i+1:])
			}
		}
		if i := strings.LastIndex(target.Value, "@"); i >= 0 {
			return strings.ToLower(target.Value[i+1:])
		}
	}
	return strings.ToLower(target.Value)
}

// decodeJSON unmarshals a response body into a generic map.
func decodeJSON(body []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return raw, nil
}

// num pulls a float out of a decoded JSON value, tolerating missing keys.
func num(m map[string]any, key string) float64 {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return 0
}

// boolean pulls a bool out of a decoded JSON value.
func boolean(m map[string]any, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// str pulls a string out of a decoded JSON value.
func str(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// child descends into a nested object, returning an empty map when absent.
func child(m map[string]any, key string) map[string]any {
	if v, ok := m[key]; ok {
		if mm, ok := v.(map[string]any); ok {
			return mm
		}
	}
	return map[string]any{}
}
