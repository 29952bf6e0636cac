//go:build otelotlp

package otelobs

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// WrapHTTPHandler decorates the handler with otelhttp so inbound requests
// produce server spans with W3C trace context.
func WrapHTTPHandler(serviceName string, h http.Handler) http.Handler {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return otelhttp.NewHandler(h, serviceName)
}

// WrapHTTPTransport decorates outbound transports so source calls create
// client spans and carry traceparent headers.
func WrapHTTPTransport(t http.RoundTripper) http.RoundTripper {
	if t == nil {
		return otelhttp.DefaultClient.Transport
	}
	return otelhttp.NewTransport(t)
}
