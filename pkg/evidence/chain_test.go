package evidence

import (
	"testing"
	"time"

	"scamshield/pkg/sources"
)

func TestBuildChainSkipsFailures(t *testing.T) {
	now := time.Now()
	chain := BuildChain([]sources.SourceResult{
		{SourceName: sources.SourceWhois, Success: true, Data: map[string]any{"registrar": "R Inc"}, FetchedAt: now},
		{SourceName: sources.SourceVirusTotal, Err: sources.ErrKindTimeout, FetchedAt: now},
		{SourceName: sources.SourceShodan, RateLimited: true, Err: sources.ErrKindRateLimited, FetchedAt: now},
	})

	for _, item := range chain {
		if item.Source != sources.SourceWhois {
			t.Errorf("failed source %s produced evidence", item.Source)
		}
	}
	if len(chain) == 0 {
		t.Fatal("successful source produced no evidence")
	}
}

func TestBuildChainVerificationTiers(t *testing.T) {
	now := time.Now()
	chain := BuildChain([]sources.SourceResult{
		{SourceName: sources.SourceWhois, Success: true, Data: map[string]any{"registrar": "Live Inc"}, FetchedAt: now},
		{SourceName: sources.SourceIPInfo, Success: true, Cached: true, Data: map[string]any{"country": "NL"}, FetchedAt: now},
		{SourceName: sources.SourceAbuseIPDB, Success: true, Cached: true, Stale: true, Data: map[string]any{"abuse_confidence": 40.0}, FetchedAt: now},
	})

	bySource := map[string]Item{}
	for _, item := range chain {
		bySource[item.Source] = item
	}

	if got := bySource[sources.SourceWhois].Status; got != StatusVerified {
		t.Errorf("live result status = %s, want VERIFIED", got)
	}
	if got := bySource[sources.SourceIPInfo].Status; got != StatusVerified {
		t.Errorf("fresh cache status = %s, want VERIFIED", got)
	}
	if got := bySource[sources.SourceAbuseIPDB].Status; got != StatusUnverified {
		t.Errorf("stale cache status = %s, want UNVERIFIED", got)
	}

	live := bySource[sources.SourceWhois].Confidence
	stale := bySource[sources.SourceAbuseIPDB].Confidence
	if stale >= live {
		t.Errorf("stale confidence %v should be below live %v", stale, live)
	}
}

func TestBuildChainSortedNewestFirst(t *testing.T) {
	base := time.Now()
	chain := BuildChain([]sources.SourceResult{
		{SourceName: sources.SourceWhois, Success: true, Data: map[string]any{"registrar": "R"}, FetchedAt: base.Add(-time.Minute)},
		{SourceName: sources.SourceIPInfo, Success: true, Data: map[string]any{"country": "US"}, FetchedAt: base},
		{SourceName: sources.SourceShodan, Success: true, Data: map[string]any{"open_ports": 3.0}, FetchedAt: base.Add(-2 * time.Minute)},
	})

	for i := 1; i < len(chain); i++ {
		if chain[i].Timestamp.After(chain[i-1].Timestamp) {
			t.Fatalf("chain not sorted newest-first at index %d", i)
		}
	}
	if chain[0].Source != sources.SourceIPInfo {
		t.Errorf("newest item = %s, want ipinfo", chain[0].Source)
	}
}

func TestBuildChainTieBreakBySourceName(t *testing.T) {
	now := time.Now()
	chain := BuildChain([]sources.SourceResult{
		{SourceName: sources.SourceWhois, Success: true, Data: map[string]any{"registrar": "R"}, FetchedAt: now},
		{SourceName: sources.SourceAbuseIPDB, Success: true, Data: map[string]any{"abuse_confidence": 10.0}, FetchedAt: now},
	})

	if len(chain) < 2 {
		t.Fatalf("chain length %d", len(chain))
	}
	if chain[0].Source != sources.SourceAbuseIPDB {
		t.Errorf("tie not broken by source name: first = %s", chain[0].Source)
	}
}

func TestGenericFindingForQuietSources(t *testing.T) {
	chain := BuildChain([]sources.SourceResult{
		{SourceName: sources.SourceOpenSanctions, Success: true, Data: map[string]any{"matches": 0.0}, FetchedAt: time.Now()},
	})

	if len(chain) != 1 {
		t.Fatalf("chain length = %d, want 1 generic item", len(chain))
	}
	if chain[0].DataType != "lookup" {
		t.Errorf("data type = %s, want lookup", chain[0].DataType)
	}
}
