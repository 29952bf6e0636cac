package investigation

import (
	"errors"
	"testing"

	"scamshield/pkg/sources"
)

func TestValidateTarget(t *testing.T) {
	cases := []struct {
		name   string
		target sources.Target
		wantOK bool
	}{
		{"valid email", sources.Target{Type: sources.TargetEmail, Value: "user@example.com"}, true},
		{"bad email", sources.Target{Type: sources.TargetEmail, Value: "not-an-email"}, false},
		{"valid phone e164", sources.Target{Type: sources.TargetPhone, Value: "+14155552671"}, true},
		{"valid phone formatted", sources.Target{Type: sources.TargetPhone, Value: "+1 (415) 555-2671"}, true},
		{"bad phone", sources.Target{Type: sources.TargetPhone, Value: "call me maybe"}, false},
		{"valid ipv4", sources.Target{Type: sources.TargetIP, Value: "203.0.113.7"}, true},
		{"valid ipv6", sources.Target{Type: sources.TargetIP, Value: "2001:db8::1"}, true},
		{"bad ip", sources.Target{Type: sources.TargetIP, Value: "203.0.113.999"}, false},
		{"valid domain", sources.Target{Type: sources.TargetDomain, Value: "shop.example.co.uk"}, true},
		{"bad domain", sources.Target{Type: sources.TargetDomain, Value: "no_tld"}, false},
		{"valid url", sources.Target{Type: sources.TargetURL, Value: "https://example.com/checkout"}, true},
		{"bad url scheme", sources.Target{Type: sources.TargetURL, Value: "ftp://example.com"}, false},
		{"empty value", sources.Target{Type: sources.TargetEmail, Value: ""}, false},
		{"unknown type", sources.Target{Type: "PASSPORT", Value: "x"}, false},
		{"bad level", sources.Target{Type: sources.TargetEmail, Value: "a@b.co", Level: "EXTREME"}, false},
		{"empty level ok", sources.Target{Type: sources.TargetEmail, Value: "a@b.co"}, true},
		{"explicit level ok", sources.Target{Type: sources.TargetEmail, Value: "a@b.co", Level: sources.LevelForensic}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTarget(tc.target)
			if tc.wantOK && err != nil {
				t.Errorf("ValidateTarget(%+v) = %v, want nil", tc.target, err)
			}
			if !tc.wantOK {
				if err == nil {
					t.Errorf("ValidateTarget(%+v) = nil, want error", tc.target)
				} else if !errors.Is(err, ErrInvalidTarget) {
					t.Errorf("error %v does not wrap ErrInvalidTarget", err)
				}
			}
		})
	}
}
