package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// whoisSpec queries a WHOIS lookup API for registration data. Domain age is
// the single most useful scam signal it yields: throwaway scam domains are
// typically days old.
func whoisSpec(cred Credential) Spec {
	endpoint := cred.Endpoint
	if endpoint == "" {
		endpoint = "https://www.whoisxmlapi.com/whoisserver/WhoisService"
	}
	return Spec{
		Name:        SourceWhois,
		Endpoint:    endpoint,
		TargetTypes: []TargetType{TargetDomain, TargetURL, TargetEmail},
		Timeout:     10 * time.Second,
		BuildRequest: func(ctx context.Context, target Target) (*http.Request, error) {
			q := url.Values{}
			q.Set("domainName", domainOf(target))
			q.Set("outputFormat", "JSON")
			q.Set("apiKey", cred.APIKey)
			return http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
		},
		Normalize: func(status int, body []byte) (map[string]any, error) {
			raw, err := decodeJSON(body)
			if err != nil {
				return nil, err
			}
			rec := child(raw, "WhoisRecord")
			data := map[string]any{
				"registrar":         str(rec, "registrarName"),
				"created":           str(rec, "createdDate"),
				"privacy_protected": strings.Contains(strings.ToLower(str(child(rec, "registrant"), "organization")), "privacy"),
			}
			if created, err := time.Parse(time.RFC3339, str(rec, "createdDate")); err == nil {
				data["domain_age_days"] = time.Since(created).Hours() / 24
			}
			return data, nil
		},
		Succeeded: func(status int, data map[string]any) bool {
			return str(data, "registrar") != "" || data["domain_age_days"] != nil
		},
	}
}

// virusTotalSpec checks a domain, IP, or URL against VirusTotal's aggregated
// engine verdicts.
func virusTotalSpec(cred Credential) Spec {
	endpoint := cred.Endpoint
	if endpoint == "" {
		endpoint = "https://www.virustotal.com/api/v3"
	}
	return Spec{
		Name:        SourceVirusTotal,
		Endpoint:    endpoint,
		TargetTypes: []TargetType{TargetDomain, TargetIP, TargetURL},
		Timeout:     15 * time.Second,
		BuildRequest: func(ctx context.Context, target Target) (*http.Request, error) {
			var path string
			switch target.Type {
			case TargetIP:
				path = "/ip_addresses/" + url.PathEscape(target.Value)
			default:
				path = "/domains/" + url.PathEscape(domainOf(target))
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+path, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("x-apikey", cred.APIKey)
			return req, nil
		},
		Normalize: func(status int, body []byte) (map[string]any, error) {
			raw, err := decodeJSON(body)
			if err != nil {
				return nil, err
			}
			attrs := child(child(raw, "data"), "attributes")
			stats := child(attrs, "last_analysis_stats")
			malicious := num(stats, "malicious")
			suspicious := num(stats, "suspicious")
			total := malicious + suspicious + num(stats, "harmless") + num(stats, "undetected")
			return map[string]any{
				"malicious_votes":  malicious,
				"suspicious_votes": suspicious,
				"total_engines":    total,
				"reputation":       num(attrs, "reputation"),
			}, nil
		},
		Succeeded: func(status int, data map[string]any) bool {
			return num(data, "total_engines") > 0
		},
	}
}

// shodanSpec pulls exposed-service intelligence for an IP from Shodan.
func shodanSpec(cred Credential) Spec {
	endpoint := cred.Endpoint
	if endpoint == "" {
		endpoint = "https://api.shodan.io"
	}
	return Spec{
		Name:        SourceShodan,
		Endpoint:    endpoint,
		TargetTypes: []TargetType{TargetIP},
		Timeout:     15 * time.Second,
		BuildRequest: func(ctx context.Context, target Target) (*http.Request, error) {
			u := fmt.Sprintf("%s/shodan/host/%s?key=%s", endpoint, url.PathEscape(target.Value), url.QueryEscape(cred.APIKey))
			return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		},
		Normalize: func(status int, body []byte) (map[string]any, error) {
			raw, err := decodeJSON(body)
			if err != nil {
				return nil, err
			}
			openPorts := 0.0
			if ports, ok := raw["ports"].([]any); ok {
				openPorts = float64(len(ports))
			}
			vulns := 0.0
			if vs, ok := raw["vulns"].([]any); ok {
				vulns = float64(len(vs))
			}
			return map[string]any{
				"open_ports": openPorts,
				"vulns":      vulns,
				"org":        str(raw, "org"),
				"country":    str(raw, "country_name"),
			}, nil
		},
	}
}
