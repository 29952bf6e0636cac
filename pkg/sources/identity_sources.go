package sources

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// emailRepSpec queries EmailRep for sender reputation and abuse history.
func emailRepSpec(cred Credential) Spec {
	endpoint := cred.Endpoint
	if endpoint == "" {
		endpoint = "https://emailrep.io"
	}
	return Spec{
		Name:        SourceEmailRep,
		Endpoint:    endpoint,
		TargetTypes: []TargetType{TargetEmail},
		Timeout:     10 * time.Second,
		BuildRequest: func(ctx context.Context, target Target) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/"+url.PathEscape(target.Value), nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Key", cred.APIKey)
			req.Header.Set("User-Agent", "scamshield-investigator")
			return req, nil
		},
		Normalize: func(status int, body []byte) (map[string]any, error) {
			raw, err := decodeJSON(body)
			if err != nil {
				return nil, err
			}
			details := child(raw, "details")
			return map[string]any{
				"reputation":                 str(raw, "reputation"),
				"suspicious":                 boolean(raw, "suspicious"),
				"blacklisted":                boolean(details, "blacklisted"),
				"malicious_activity":         boolean(details, "malicious_activity"),
				"credentials_leaked":         boolean(details, "credentials_leaked"),
				"disposable":                 boolean(details, "disposable"),
				"free_provider":              boolean(details, "free_provider"),
				"days_since_domain_creation": num(details, "days_since_domain_creation"),
			}, nil
		},
		Succeeded: func(status int, data map[string]any) bool {
			return str(data, "reputation") != ""
		},
	}
}

// breachDirectorySpec checks whether the identifier appears in known data
// breaches. Exposure count feeds both identity and financial scoring.
func breachDirectorySpec(cred Credential) Spec {
	endpoint := cred.Endpoint
	if endpoint == "" {
		endpoint = "https://breachdirectory.org/api"
	}
	return Spec{
		Name:        SourceBreachDirectory,
		Endpoint:    endpoint,
		TargetTypes: []TargetType{TargetEmail, TargetPhone},
		Timeout:     10 * time.Second,
		BuildRequest: func(ctx context.Context, target Target) (*http.Request, error) {
			q := url.Values{}
			q.Set("func", "auto")
			q.Set("term", target.Value)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("X-API-Key", cred.APIKey)
			return req, nil
		},
		Normalize: func(status int, body []byte) (map[string]any, error) {
			raw, err := decodeJSON(body)
			if err != nil {
				return nil, err
			}
			count := num(raw, "found")
			passwordExposed := false
			if entries, ok := raw["result"].([]any); ok {
				for _, e := range entries {
					if em, ok := e.(map[string]any); ok && str(em, "password") != "" {
						passwordExposed = true
						break
					}
				}
			}
			return map[string]any{
				"breach_count":     count,
				"password_exposed": passwordExposed,
			}, nil
		},
	}
}

// numverifySpec validates a phone number's line type and carrier.
func numverifySpec(cred Credential) Spec {
	endpoint := cred.Endpoint
	if endpoint == "" {
		endpoint = "https://apilayer.net/api/validate"
	}
	return Spec{
		Name:        SourceNumverify,
		Endpoint:    endpoint,
		TargetTypes: []TargetType{TargetPhone},
		Timeout:     10 * time.Second,
		BuildRequest: func(ctx context.Context, target Target) (*http.Request, error) {
			q := url.Values{}
			q.Set("access_key", cred.APIKey)
			q.Set("number", target.Value)
			return http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
		},
		Normalize: func(status int, body []byte) (map[string]any, error) {
			raw, err := decodeJSON(body)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"valid":     boolean(raw, "valid"),
				"line_type": str(raw, "line_type"),
				"carrier":   str(raw, "carrier"),
				"country":   str(raw, "country_name"),
			}, nil
		},
		Succeeded: func(status int, data map[string]any) bool {
			// numverify returns 200 with {"success": false} on bad input
			_, hasValid := data["valid"]
			return hasValid
		},
	}
}

// openSanctionsSpec screens the subject against sanctions and PEP datasets.
// Any match is a compliance-critical signal regardless of other scores.
func openSanctionsSpec(cred Credential) Spec {
	endpoint := cred.Endpoint
	if endpoint == "" {
		endpoint = "https://api.opensanctions.org/search/default"
	}
	return Spec{
		Name:        SourceOpenSanctions,
		Endpoint:    endpoint,
		TargetTypes: []TargetType{TargetEmail, TargetPhone, TargetDomain, TargetURL, TargetIP},
		Timeout:     15 * time.Second,
		BuildRequest: func(ctx context.Context, target Target) (*http.Request, error) {
			q := url.Values{}
			q.Set("q", target.Value)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "ApiKey "+cred.APIKey)
			return req, nil
		},
		Normalize: func(status int, body []byte) (map[string]any, error) {
			raw, err := decodeJSON(body)
			if err != nil {
				return nil, err
			}
			matches := 0.0
			pep := 0.0
			topScore := 0.0
			if results, ok := raw["results"].([]any); ok {
				matches = float64(len(results))
				for _, r := range results {
					rm, ok := r.(map[string]any)
					if !ok {
						continue
					}
					if s := num(rm, "score"); s > topScore {
						topScore = s
					}
					if topics, ok := rm["topics"].([]any); ok {
						for _, t := range topics {
							if ts, ok := t.(string); ok && ts == "role.pep" {
								pep++
							}
						}
					}
				}
			}
			return map[string]any{
				"matches":     matches,
				"pep_matches": pep,
				"top_score":   topScore,
			}, nil
		},
	}
}
