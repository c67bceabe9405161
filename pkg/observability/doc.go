// Package observability provides logging, metrics, health checks and
// graceful shutdown for the Beacon server.
//
// Logging is structured JSON on stdlib slog. Metrics are Prometheus,
// exposed on the health port. Health checks probe PostgreSQL (profiles,
// submissions, audit trail) and Redis (sessions); Redis down means the
// dashboard cannot authenticate anyone, so it is reported unhealthy, not
// merely degraded.
//
// OpenTelemetry tracing/metrics export (OTLP over gRPC) is optional and
// disabled unless configured.
package observability
