package docstore

import (
	"context"
	"errors"
)

// ErrNotFound signals that the requested document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrConflict signals that a conditional write lost a race: the stored
// revision no longer matches the expected one.
var ErrConflict = errors.New("document revision conflict")

// NoRevision is the expected revision of a document that must not exist
// yet. ConditionalSet with NoRevision is a create, never an update.
const NoRevision = ""

// Document is one stored capture document. Data maps category names to
// item arrays or scalar fields; its shape is JSON all the way down.
type Document struct {
	Data map[string]any `json:"data"`
}

// Store persists documents per (collection, key) with optimistic
// concurrency. Revisions are opaque strings: callers thread the revision
// returned by Get into ConditionalSet unchanged and never interpret it.
type Store interface {
	// Get loads a document and its current revision, or ErrNotFound.
	Get(ctx context.Context, collection, key string) (Document, string, error)
	// ConditionalSet writes doc only while the stored revision still equals
	// expectedRevision; NoRevision requires the document to be absent.
	// A moved revision surfaces as ErrConflict.
	ConditionalSet(ctx context.Context, collection, key string, doc Document, expectedRevision string) error
	// Delete removes a document or returns ErrNotFound.
	Delete(ctx context.Context, collection, key string) error
	// ListKeys returns the document keys of a collection in sorted order.
	ListKeys(ctx context.Context, collection string) ([]string, error)
}
