package structlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

type ctxKeyRequestID struct{}

// Fields represents structured log fields
type Fields map[string]interface{}

// Logger writes one JSON object per line with service and base fields.
// API credentials and investigation subjects routinely pass through log
// fields, so every record goes through the sanitizer.
type Logger struct {
	service   string
	level     Level
	output    io.Writer
	mu        sync.Mutex
	fields    Fields
	sanitizer *Sanitizer
}

// Sanitizer masks sensitive data in logs
type Sanitizer struct {
	maskSubstrings []string
}

// NewSanitizer creates a log sanitizer covering credential-bearing fields.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		maskSubstrings: []string{"password", "secret", "token", "apikey", "api_key", "authorization", "credential"},
	}
}

// Sanitize masks sensitive fields
func (s *Sanitizer) Sanitize(fields Fields) Fields {
	cleaned := make(Fields, len(fields))
	for k, v := range fields {
		masked := false
		lk := strings.ToLower(k)
		for _, sub := range s.maskSubstrings {
			if strings.Contains(lk, sub) {
				cleaned[k] = "MASKED"
				masked = true
				break
			}
		}
		if !masked {
			cleaned[k] = v
		}
	}
	return cleaned
}

// NewLogger creates a structured logger for a service
func NewLogger(serviceName string, level Level, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	return &Logger{
		service:   serviceName,
		level:     level,
		output:    output,
		fields:    Fields{},
		sanitizer: NewSanitizer(),
	}
}

// WithFields returns a logger with additional base fields
func (l *Logger) WithFields(fields Fields) *Logger {
	nl := &Logger{
		service:   l.service,
		level:     l.level,
		output:    l.output,
		sanitizer: l.sanitizer,
		fields:    make(Fields, len(l.fields)+len(fields)),
	}
	for k, v := range l.fields {
		nl.fields[k] = v
	}
	for k, v := range fields {
		nl.fields[k] = v
	}
	return nl
}

// WithContext attaches the request ID from context, when present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if id := RequestIDFrom(ctx); id != "" {
		return l.WithFields(Fields{"request_id": id})
	}
	return l
}

func (l *Logger) Debug(message string, fields Fields) { l.log(LevelDebug, message, fields) }
func (l *Logger) Info(message string, fields Fields)  { l.log(LevelInfo, message, fields) }
func (l *Logger) Warn(message string, fields Fields)  { l.log(LevelWarn, message, fields) }
func (l *Logger) Error(message string, fields Fields) { l.log(LevelError, message, fields) }

func (l *Logger) log(level Level, message string, fields Fields) {
	if level < l.level {
		return
	}
	all := make(Fields, len(l.fields)+len(fields)+4)
	for k, v := range l.fields {
		all[k] = v
	}
	for k, v := range fields {
		all[k] = v
	}
	all["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	all["level"] = level.String()
	all["service"] = l.service
	all["message"] = message

	all = l.sanitizer.Sanitize(all)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := json.NewEncoder(l.output).Encode(all); err != nil {
		fmt.Fprintf(os.Stderr, "LOG_ERROR: failed to encode log: %v\n", err)
	}
}

// SetLevel changes log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// ContextWithRequestID returns a context carrying the request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID{}, id)
}

// RequestIDFrom extracts the request ID, or "".
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyRequestID{}).(string); ok {
		return id
	}
	return ""
}
