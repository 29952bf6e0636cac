package otelobs

import (
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// HTTPTraceLogMiddleware logs one access line with trace_id/span_id per
// request and mirrors both IDs in response headers for correlation.
func HTTPTraceLogMiddleware(next http.Handler) http.Handler {
	if next == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(404) })
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		traceID := "-"
		spanID := "-"
		// correlation headers must land before the handler writes the status
		// line; after WriteHeader the header map is sealed
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			traceID = sc.TraceID().String()
			spanID = sc.SpanID().String()
			w.Header().Set("Trace-Id", traceID)
			w.Header().Set("Span-Id", spanID)
		}
		sr := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(sr, r)
		dur := time.Since(start)
		log.Printf("access method=%s path=%s status=%d dur_ms=%d trace_id=%s span_id=%s", r.Method, r.URL.Path, sr.status, dur.Milliseconds(), traceID, spanID)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}
