package sources

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// abuseIPDBSpec checks an IP against AbuseIPDB's crowd-sourced abuse reports.
// The abuse confidence percentage is the primary threat sub-score.
func abuseIPDBSpec(cred Credential) Spec {
	endpoint := cred.Endpoint
	if endpoint == "" {
		endpoint = "https://api.abuseipdb.com/api/v2/check"
	}
	return Spec{
		Name:        SourceAbuseIPDB,
		Endpoint:    endpoint,
		TargetTypes: []TargetType{TargetIP},
		Timeout:     10 * time.Second,
		BuildRequest: func(ctx context.Context, target Target) (*http.Request, error) {
			q := url.Values{}
			q.Set("ipAddress", target.Value)
			q.Set("maxAgeInDays", "90")
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Key", cred.APIKey)
			req.Header.Set("Accept", "application/json")
			return req, nil
		},
		Normalize: func(status int, body []byte) (map[string]any, error) {
			raw, err := decodeJSON(body)
			if err != nil {
				return nil, err
			}
			d := child(raw, "data")
			return map[string]any{
				"abuse_confidence": num(d, "abuseConfidenceScore"),
				"total_reports":    num(d, "totalReports"),
				"is_tor":           boolean(d, "isTor"),
				"usage_type":       str(d, "usageType"),
			}, nil
		},
	}
}

// ipInfoSpec resolves geolocation and hosting classification for an IP.
// VPN/proxy/hosting flags feed the digital-footprint score.
func ipInfoSpec(cred Credential) Spec {
	endpoint := cred.Endpoint
	if endpoint == "" {
		endpoint = "https://ipinfo.io"
	}
	return Spec{
		Name:        SourceIPInfo,
		Endpoint:    endpoint,
		TargetTypes: []TargetType{TargetIP},
		Timeout:     10 * time.Second,
		BuildRequest: func(ctx context.Context, target Target) (*http.Request, error) {
			u := endpoint + "/" + url.PathEscape(target.Value) + "?token=" + url.QueryEscape(cred.APIKey)
			return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		},
		Normalize: func(status int, body []byte) (map[string]any, error) {
			raw, err := decodeJSON(body)
			if err != nil {
				return nil, err
			}
			privacy := child(raw, "privacy")
			return map[string]any{
				"country": str(raw, "country"),
				"org":     str(raw, "org"),
				"city":    str(raw, "city"),
				"hosting": boolean(privacy, "hosting"),
				"vpn":     boolean(privacy, "vpn"),
				"proxy":   boolean(privacy, "proxy"),
			}, nil
		},
		Succeeded: func(status int, data map[string]any) bool {
			return str(data, "country") != ""
		},
	}
}
