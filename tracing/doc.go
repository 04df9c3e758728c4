// Package tracing wraps OpenTelemetry so that workflow transitions and
// notification fan-out are reported as spans. Applications that do not
// enable tracing get no-op spans from the global provider.
package tracing
