package sources

import (
	"time"
)

// TargetType identifies what kind of subject is being investigated.
type TargetType string

const (
	TargetEmail  TargetType = "EMAIL"
	TargetPhone  TargetType = "PHONE"
	TargetIP     TargetType = "IP"
	TargetDomain TargetType = "DOMAIN"
	TargetURL    TargetType = "URL"
)

// InvestigationLevel controls how much time and depth an investigation gets.
type InvestigationLevel string

const (
	LevelBasic        InvestigationLevel = "BASIC"
	LevelStandard     InvestigationLevel = "STANDARD"
	LevelProfessional InvestigationLevel = "PROFESSIONAL"
	LevelForensic     InvestigationLevel = "FORENSIC"
)

// Target is the immutable subject of one investigation.
type Target struct {
	Type  TargetType         `json:"type"`
	Value string             `json:"value"`
	Level InvestigationLevel `json:"investigation_level"`
}

// ErrorKind classifies why a source call failed. Transient kinds are retried
// inside the client; everything here is reported as data, never raised.
type ErrorKind string

const (
	ErrKindTimeout     ErrorKind = "timeout"
	ErrKindConnection  ErrorKind = "connection"
	ErrKindServer      ErrorKind = "http_5xx"
	ErrKindAuth        ErrorKind = "auth"
	ErrKindBadResponse ErrorKind = "malformed_response"
	ErrKindRateLimited ErrorKind = "rate_limited"
	ErrKindCircuitOpen ErrorKind = "circuit_open"
)

// SourceResult is the common envelope every source call produces exactly once.
// It is never mutated after creation.
type SourceResult struct {
	SourceName  string         `json:"source_name"`
	Success     bool           `json:"success"`
	Data        map[string]any `json:"data,omitempty"`
	Err         ErrorKind      `json:"error,omitempty"`
	ErrDetail   string         `json:"error_detail,omitempty"`
	Latency     time.Duration  `json:"latency_ns"`
	Cached      bool           `json:"cached"`
	Stale       bool           `json:"stale"`
	RateLimited bool           `json:"rate_limited"`
	FetchedAt   time.Time      `json:"fetched_at"`
}

// Failed reports whether the call produced no usable data.
func (r SourceResult) Failed() bool { return !r.Success }

// Reason returns a short status string for audit trails ("ok", "timeout", ...).
func (r SourceResult) Reason() string {
	if r.Success {
		if r.Cached {
			return "ok (cached)"
		}
		return "ok"
	}
	if r.Err != "" {
		return string(r.Err)
	}
	return "failed"
}
