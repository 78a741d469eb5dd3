// Package capture holds the domain types for scraped-data webhook payloads
// and the pure transform pipeline that turns them into store-ready documents:
// document-key derivation, field cleaning, item normalization and enrichment,
// deduplication, and the append-only merge. Nothing in this package performs
// I/O; orchestration lives in internal/ingest.
package capture
