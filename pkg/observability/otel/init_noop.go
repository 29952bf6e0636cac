//go:build !otelotlp

package otelobs

import "context"

// InitTracer is a no-op by default. Build with -tags otelotlp to enable tracing.
func InitTracer(serviceName string) func(context.Context) error {
	return func(context.Context) error { return nil }
}
