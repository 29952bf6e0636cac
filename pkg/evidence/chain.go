package evidence

import (
	"fmt"
	"sort"
	"time"

	"scamshield/pkg/sources"
)

// VerificationStatus records how trustworthy one evidence item is.
type VerificationStatus string

const (
	StatusVerified   VerificationStatus = "VERIFIED"
	StatusUnverified VerificationStatus = "UNVERIFIED"
	StatusFailed     VerificationStatus = "FAILED"
)

// Item is one timestamped, source-attributed finding supporting the verdict.
// The chain is append-only; items are never mutated after creation.
type Item struct {
	Source     string             `json:"source"`
	DataType   string             `json:"data_type"`
	Finding    string             `json:"finding"`
	Confidence float64            `json:"confidence"`
	Timestamp  time.Time          `json:"timestamp"`
	Status     VerificationStatus `json:"verification_status"`
}

// BuildChain converts successful source results into evidence items, zero or
// more per source. Live and fresh-cache results are VERIFIED; stale-cache
// results are UNVERIFIED. Failed and rate-limited sources never produce
// evidence (the orchestrator records them in sourcesUsed instead). The chain
// is returned sorted by timestamp descending, ties broken by source name so
// output is deterministic.
func BuildChain(results []sources.SourceResult) []Item {
	chain := make([]Item, 0, len(results))
	for _, r := range results {
		if !r.Success {
			continue
		}
		status := StatusVerified
		conf := 0.9
		if r.Cached {
			conf = 0.8
			if r.Stale {
				status = StatusUnverified
				conf = 0.5
			}
		}
		for _, f := range findings(r) {
			chain = append(chain, Item{
				Source:     r.SourceName,
				DataType:   f.dataType,
				Finding:    f.text,
				Confidence: conf * f.weight,
				Timestamp:  r.FetchedAt,
				Status:     status,
			})
		}
	}
	sort.SliceStable(chain, func(i, j int) bool {
		if !chain[i].Timestamp.Equal(chain[j].Timestamp) {
			return chain[i].Timestamp.After(chain[j].Timestamp)
		}
		return chain[i].Source < chain[j].Source
	})
	return chain
}

type finding struct {
	dataType string
	text     string
	weight   float64 // scales the item confidence; 1.0 for directly reported facts
}

// findings extracts the human-readable, source-attributed statements one
// result supports. Wording stays qualified: records "indicate" and data
// "suggests", nothing is "proven".
func findings(r sources.SourceResult) []finding {
	d := r.Data
	var out []finding
	add := func(dataType, text string, weight float64) {
		out = append(out, finding{dataType: dataType, text: text, weight: weight})
	}

	switch r.SourceName {
	case sources.SourceWhois:
		if age, ok := d["domain_age_days"].(float64); ok {
			add("registration", fmt.Sprintf("WHOIS records indicate the domain was registered %.0f days ago", age), 1.0)
		}
		if reg, ok := d["registrar"].(string); ok && reg != "" {
			add("registration", fmt.Sprintf("Registrar of record reported as %q", reg), 1.0)
		}
		if priv, ok := d["privacy_protected"].(bool); ok && priv {
			add("registration", "Registrant identity is shielded by a privacy service", 0.9)
		}
	case sources.SourceVirusTotal:
		mal, _ := d["malicious_votes"].(float64)
		total, _ := d["total_engines"].(float64)
		if total > 0 {
			add("reputation", fmt.Sprintf("Vendor analysis reports %.0f of %.0f engines flagging the subject", mal, total), 1.0)
		}
	case sources.SourceShodan:
		if ports, ok := d["open_ports"].(float64); ok {
			add("exposure", fmt.Sprintf("Network scan data indicates %.0f exposed services", ports), 1.0)
		}
		if vulns, ok := d["vulns"].(float64); ok && vulns > 0 {
			add("exposure", fmt.Sprintf("Scan data suggests %.0f known vulnerabilities on exposed services", vulns), 0.9)
		}
	case sources.SourceAbuseIPDB:
		if conf, ok := d["abuse_confidence"].(float64); ok {
			add("abuse", fmt.Sprintf("Crowd-sourced reports place abuse confidence at %.0f%%", conf), 1.0)
		}
	case sources.SourceIPInfo:
		if country, ok := d["country"].(string); ok && country != "" {
			add("geolocation", fmt.Sprintf("Geolocation data places the address in %s", country), 1.0)
		}
		if vpn, ok := d["vpn"].(bool); ok && vpn {
			add("geolocation", "Address is reported as VPN infrastructure", 0.9)
		}
	case sources.SourceEmailRep:
		if rep, ok := d["reputation"].(string); ok && rep != "" {
			add("reputation", fmt.Sprintf("Email reputation service reports %q standing", rep), 1.0)
		}
		if susp, ok := d["suspicious"].(bool); ok && susp {
			add("reputation", "Reputation data suggests suspicious sender behavior", 0.9)
		}
	case sources.SourceBreachDirectory:
		if count, ok := d["breach_count"].(float64); ok && count > 0 {
			add("breach", fmt.Sprintf("Breach records indicate exposure in %.0f known incidents", count), 1.0)
		}
	case sources.SourceNumverify:
		if valid, ok := d["valid"].(bool); ok {
			if valid {
				add("identity", "Carrier lookup indicates the phone number is in service", 1.0)
				if lt, ok := d["line_type"].(string); ok && lt != "" {
					add("identity", fmt.Sprintf("Line type reported as %s", lt), 1.0)
				}
			} else {
				add("identity", "Carrier lookup could not validate the phone number", 1.0)
			}
		}
	case sources.SourceOpenSanctions:
		if matches, ok := d["matches"].(float64); ok && matches > 0 {
			add("compliance", fmt.Sprintf("Sanctions screening reported %.0f potential list matches", matches), 1.0)
		}
	}

	// A successful source with no extractable finding still supports the
	// audit trail with a generic completion record.
	if len(out) == 0 {
		add("lookup", fmt.Sprintf("Source %s completed without adverse findings", r.SourceName), 0.7)
	}
	return out
}
