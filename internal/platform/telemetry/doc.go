// Package telemetry groups the operational observability of paywall
// processes. Tracing setup lives in internal/platform/otel; Prometheus
// collectors live in telemetry/metrics.
package telemetry
