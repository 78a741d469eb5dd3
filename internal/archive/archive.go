// Package archive defines the interface for the raw-payload archive.
// Webhook bodies are written here verbatim before any transformation, so a
// bad merge can always be replayed from source. The abstraction keeps the
// service independent of a specific blob backend (Google Cloud Storage, the
// local filesystem, or memory for tests).
package archive

import (
	"context"
	"io"
)

// Store uploads raw payloads to a blob backend.
type Store interface {
	// PutObject writes the reader's content at the given object path and
	// returns a backend-specific URI for it.
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// NoOp is an archive that drops everything. It backs the "none" archive
// mode, where ingestion runs without payload retention.
type NoOp struct{}

// PutObject discards the payload and reports an empty URI.
func (NoOp) PutObject(_ context.Context, _ string, _ string, r io.Reader) (string, error) {
	_, err := io.Copy(io.Discard, r)
	return "", err
}
