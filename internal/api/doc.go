// Package api hosts the HTTP server, middleware, and REST handlers for the
// capture sink. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/webhooks/capture for provider callbacks (plus a /strict
//     variant that rejects payloads without a task id).
//   - /v1/collections/... for the admin surface over stored documents.
//   - /v1/hooks for webhook registrations and test triggers.
package api
