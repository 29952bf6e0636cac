package otelobs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestHTTPTraceLogMiddlewareSetsHeadersBeforeWrite(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:  trace.SpanID{0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18},
	})
	h := HTTPTraceLogMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Trace-Id"); got != sc.TraceID().String() {
		t.Errorf("Trace-Id = %q, want %q", got, sc.TraceID().String())
	}
	if got := rec.Header().Get("Span-Id"); got != sc.SpanID().String() {
		t.Errorf("Span-Id = %q, want %q", got, sc.SpanID().String())
	}
}

func TestHTTPTraceLogMiddlewareNoSpanContext(t *testing.T) {
	h := HTTPTraceLogMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Trace-Id"); got != "" {
		t.Errorf("Trace-Id = %q, want empty without a span", got)
	}
}

func TestHTTPTraceLogMiddlewareNilHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HTTPTraceLogMiddleware(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
