// Package observability provides structured logging, metrics, and tracing
// for the mail backend.
//
// This package implements:
//   - zap logger construction from LOG_LEVEL / LOG_FORMAT
//   - Prometheus collectors for HTTP traffic and compose provider attempts
//   - OpenTelemetry span helpers and an optional stdout trace exporter
//
// A nil *Metrics is a valid no-op recorder.
package observability
