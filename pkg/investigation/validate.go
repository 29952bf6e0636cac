package investigation

import (
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"scamshield/pkg/sources"
)

// ErrInvalidTarget is the only failure Investigate surfaces to the caller.
// Everything else degrades into result quality.
var ErrInvalidTarget = errors.New("invalid target")

var (
	// E.164-ish: optional +, 7-15 digits
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

	// label.label TLD, no scheme, no path
	domainRegex = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)
)

// ValidateTarget rejects malformed targets before any network call is made.
func ValidateTarget(t sources.Target) error {
	value := strings.TrimSpace(t.Value)
	if value == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidTarget)
	}
	if len(value) > 2048 {
		return fmt.Errorf("%w: value too long", ErrInvalidTarget)
	}

	switch t.Type {
	case sources.TargetEmail:
		if _, err := mail.ParseAddress(value); err != nil {
			return fmt.Errorf("%w: %q is not a valid email address", ErrInvalidTarget, value)
		}
	case sources.TargetPhone:
		cleaned := strings.Map(func(r rune) rune {
			switch r {
			case ' ', '-', '(', ')', '.':
				return -1
			}
			return r
		}, value)
		if !phoneRegex.MatchString(cleaned) {
			return fmt.Errorf("%w: %q is not a valid phone number", ErrInvalidTarget, value)
		}
	case sources.TargetIP:
		if net.ParseIP(value) == nil {
			return fmt.Errorf("%w: %q is not a valid IP address", ErrInvalidTarget, value)
		}
	case sources.TargetDomain:
		if !domainRegex.MatchString(strings.ToLower(value)) {
			return fmt.Errorf("%w: %q is not a valid domain name", ErrInvalidTarget, value)
		}
	case sources.TargetURL:
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q is not a valid http(s) URL", ErrInvalidTarget, value)
		}
	default:
		return fmt.Errorf("%w: unknown target type %q", ErrInvalidTarget, t.Type)
	}

	switch t.Level {
	case "", sources.LevelBasic, sources.LevelStandard, sources.LevelProfessional, sources.LevelForensic:
		return nil
	default:
		return fmt.Errorf("%w: unknown investigation level %q", ErrInvalidTarget, t.Level)
	}
}
