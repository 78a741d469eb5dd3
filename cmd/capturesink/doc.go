// Package main hosts the capturesink service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, webhook ingestion, and admin endpoints. Provider
//     callbacks land on the webhook routes with no credentials, are parsed into capture payloads, and handed to
//     the ingest service. Admin routes browse and delete stored documents; hook routes manage webhook
//     registrations and manual triggers. Admin and hook routes sit behind an optional API key.
//   - Ingest pipeline: internal/ingest.Service archives the raw payload, normalizes it into per-collection
//     documents keyed by site, and merges new items through conditional writes with bounded retries, so
//     concurrent callbacks for the same site never lose or duplicate items.
//   - Persistence & fanout: normalized documents live in the configured document store (memory/Postgres/
//     Firestore); raw payloads go to the configured archive (memory/local/GCS, or none). Capture lifecycle
//     events are buffered by the notify hub and fanned out to sinks: structured logs, Prometheus counters, an
//     optional Pub/Sub topic, and registered webhooks signed with per-hook HMAC secrets.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging;
//     Prometheus metrics are exported via the telemetry middleware and /metrics handler; OpenTelemetry traces
//     export to Google Cloud when enabled. The service is stateless across requests, suitable for Cloud Run
//     scale-out.
//
// Operational notes:
//   - Concurrency model: webhook handling is request-scoped; the merge loop retries conditional writes with
//     jittered backoff under contention. The notify hub batches events on a single goroutine and never blocks
//     ingestion; a full buffer drops events with a rate-limited warning.
//   - Hook delivery: dispatches retry with exponential backoff and pace per endpoint host. Slow or failing
//     endpoints cannot stall ingestion because deliveries run on the hub's flush path, not the request path.
//   - Observability: zap logs carry doc keys and task IDs at key transitions; Prometheus counters/histograms
//     track HTTP activity, ingest outcomes, and hook deliveries.
//   - Cloud Run: the HTTP server listens on the configured port. Health endpoints (/healthz, /readyz) remain
//     lightweight; the process reacts to SIGTERM for graceful drain, flushing the notify hub before exit.
//
// Quick checklist:
//   - Configure env vars: CAPTURESINK_SERVER_PORT, CAPTURESINK_DOCSTORE_BACKEND, CAPTURESINK_DATABASE_DSN,
//     CAPTURESINK_ARCHIVE_BACKEND, CAPTURESINK_PUBSUB_ENABLED, and CAPTURESINK_AUTH_API_KEY when the admin
//     surface needs protecting.
//   - Run locally: go run ./cmd/capturesink -config config.yaml (or rely solely on env overrides).
//   - Cloud Run: container listens on the configured port, remains stateless across requests, and shuts down
//     cleanly on SIGTERM.
package main
