package fusion

import (
	"fmt"

	"scamshield/pkg/sources"
)

// Indicator wording policy: every finding is qualified ("reported",
// "suggests", "indicates") and never claims certainty. The sanctions-match
// prefix is also matched by the level-floor escalation in Fuse.
const (
	indSanctionsMatchPrefix = "Sanctions screening reported"
	indSanctionsMatch       = "Sanctions match found"
)

// field access helpers: scorers read only these explicitly named fields from
// the normalized maps.

func fnum(m map[string]any, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}

func fbool(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func fstr(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// scoreIdentity weighs signals about whether the subject is who it claims
// to be: sender reputation, phone validity, registration history.
func scoreIdentity(data map[string]map[string]any) (float64, []string) {
	score := 0.05
	var inds []string

	if er, ok := data[sources.SourceEmailRep]; ok {
		if fbool(er, "suspicious") {
			score += 0.25
			inds = append(inds, "Email reputation data suggests suspicious sender behavior")
		}
		if fbool(er, "blacklisted") {
			score += 0.25
			inds = append(inds, "Email address reported on one or more blocklists")
		}
		if fbool(er, "disposable") {
			score += 0.20
			inds = append(inds, "Disposable email provider reported")
		}
		if rep := fstr(er, "reputation"); rep == "low" || rep == "none" {
			score += 0.15
		}
		if d := fnum(er, "days_since_domain_creation"); d > 0 && d < 30 {
			score += 0.15
			inds = append(inds, "Recent domain registration")
		}
	}

	if nv, ok := data[sources.SourceNumverify]; ok {
		if !fbool(nv, "valid") {
			score += 0.50
			inds = append(inds, "Phone number failed carrier validation")
		} else if fstr(nv, "line_type") == "voip" {
			score += 0.20
			inds = append(inds, "VoIP line type reported for phone number")
		}
	}

	if wh, ok := data[sources.SourceWhois]; ok {
		if d := fnum(wh, "domain_age_days"); d > 0 && d < 30 {
			score += 0.30
			inds = append(inds, "Recent domain registration")
		}
		if fbool(wh, "privacy_protected") {
			score += 0.10
			inds = append(inds, "WHOIS registrant data hidden behind privacy service")
		}
	}

	return score, inds
}

// scoreFinancial weighs exposure signals relevant to payment fraud:
// breached credentials and leaked financial identifiers.
func scoreFinancial(data map[string]map[string]any) (float64, []string) {
	score := 0.05
	var inds []string

	if bd, ok := data[sources.SourceBreachDirectory]; ok {
		if count := fnum(bd, "breach_count"); count > 0 {
			add := 0.10 * count
			if add > 0.40 {
				add = 0.40
			}
			score += add
			inds = append(inds, fmt.Sprintf("Breach data indicates exposure in %.0f known incidents", count))
		}
		if fbool(bd, "password_exposed") {
			score += 0.20
			inds = append(inds, "Exposed credentials reported in breach data")
		}
	}

	if er, ok := data[sources.SourceEmailRep]; ok {
		if fbool(er, "credentials_leaked") {
			score += 0.30
			inds = append(inds, "Leaked credentials associated with this address")
		}
		if fbool(er, "malicious_activity") {
			score += 0.25
			inds = append(inds, "Reported malicious activity history for this address")
		}
	}

	return score, inds
}

// scoreDigital weighs the subject's technical footprint: vendor verdicts,
// exposed services, anonymizing infrastructure, registration age.
func scoreDigital(data map[string]map[string]any) (float64, []string) {
	score := 0.05
	var inds []string

	if vt, ok := data[sources.SourceVirusTotal]; ok {
		if total := fnum(vt, "total_engines"); total > 0 {
			ratio := fnum(vt, "malicious_votes") / total
			score += ratio * 0.80
			score += (fnum(vt, "suspicious_votes") / total) * 0.30
			if fnum(vt, "malicious_votes") > 0 {
				inds = append(inds, fmt.Sprintf("Evidence indicates %.0f security vendors flag this subject", fnum(vt, "malicious_votes")))
			}
		}
	}

	if sh, ok := data[sources.SourceShodan]; ok {
		if v := fnum(sh, "vulns"); v > 0 {
			add := 0.05 * v
			if add > 0.30 {
				add = 0.30
			}
			score += add
			inds = append(inds, "Known vulnerabilities reported on exposed services")
		}
		if fnum(sh, "open_ports") > 10 {
			score += 0.10
			inds = append(inds, "Unusually broad service exposure observed")
		}
	}

	if ip, ok := data[sources.SourceIPInfo]; ok {
		if fbool(ip, "vpn") || fbool(ip, "proxy") {
			score += 0.20
			inds = append(inds, "Anonymizing infrastructure (VPN/proxy) reported")
		}
		if fbool(ip, "hosting") {
			score += 0.10
		}
	}

	if wh, ok := data[sources.SourceWhois]; ok {
		if d := fnum(wh, "domain_age_days"); d > 0 && d < 30 {
			score += 0.20
			inds = append(inds, "Recent domain registration")
		}
	}

	return score, inds
}

// scoreCompliance screens sanctions and PEP signals. Any match dominates the
// domain score; the engine additionally floors the overall level at HIGH.
func scoreCompliance(data map[string]map[string]any) (float64, []string) {
	os, ok := data[sources.SourceOpenSanctions]
	if !ok {
		return 0.05, nil
	}
	matches := fnum(os, "matches")
	if matches == 0 {
		return 0.05, nil
	}
	score := 0.90
	inds := []string{fmt.Sprintf("%s %.0f potential matches", indSanctionsMatchPrefix, matches)}
	if pep := fnum(os, "pep_matches"); pep > 0 {
		score = 1.0
		inds = append(inds, "Politically exposed person association reported")
	}
	return score, inds
}

// scoreThreat weighs active-abuse signals: crowd-sourced abuse confidence,
// vendor detections, exposed vulnerabilities.
func scoreThreat(data map[string]map[string]any) (float64, []string) {
	score := 0.05
	var inds []string

	if ab, ok := data[sources.SourceAbuseIPDB]; ok {
		conf := fnum(ab, "abuse_confidence") / 100.0
		score += conf * 0.90
		if conf >= 0.5 {
			inds = append(inds, fmt.Sprintf("Abuse reports suggest elevated threat (confidence %.0f%%)", conf*100))
		}
		if fnum(ab, "total_reports") > 10 {
			score += 0.10
		}
		if fbool(ab, "is_tor") {
			score += 0.20
			inds = append(inds, "Tor exit node reported")
		}
	}

	if vt, ok := data[sources.SourceVirusTotal]; ok {
		if total := fnum(vt, "total_engines"); total > 0 {
			ratio := fnum(vt, "malicious_votes") / total
			score += ratio * 0.50
		}
	}

	if sh, ok := data[sources.SourceShodan]; ok {
		if fnum(sh, "vulns") > 0 {
			score += 0.10
		}
	}

	return score, inds
}
