// Package notify defines the event structures emitted by the ingest
// pipeline and the hub that fans them out to sinks.
package notify

import (
	"errors"
	"fmt"
	"time"
)

// Kind denotes the type of milestone represented by an Event.
type Kind string

// Supported event kinds.
const (
	// KindIngested fires once per merged collection of a webhook payload.
	KindIngested Kind = "CAPTURE_INGESTED"
	// KindIngestFailed fires when a payload could not be persisted.
	KindIngestFailed Kind = "CAPTURE_FAILED"
	// KindDocumentDeleted fires on an administrative document delete.
	KindDocumentDeleted Kind = "DOCUMENT_DELETED"
)

// Event captures a single milestone of the capture-ingestion lifecycle.
// Events are serialized as-is onto the pub/sub topic and into registered
// hook deliveries.
type Event struct {
	// Kind is the lifecycle milestone.
	Kind Kind `json:"kind"`
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time `json:"ts"`
	// TaskID identifies the upstream task behind the event, when known.
	TaskID string `json:"taskId,omitempty"`
	// DocKey is the affected document key.
	DocKey string `json:"docKey"`
	// Collection names the affected collection.
	Collection string `json:"collection,omitempty"`
	// Items counts the new items a merge appended.
	Items int `json:"items,omitempty"`
	// ArchiveURI points at the archived raw payload, when archiving ran.
	ArchiveURI string `json:"archiveUri,omitempty"`
	// Dur captures ingest latency; it feeds metrics, not serialization.
	Dur time.Duration `json:"-"`
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string `json:"note,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindIngested:
		if e.DocKey == "" {
			return errors.New("ingested event requires doc key")
		}
		if e.Collection == "" {
			return errors.New("ingested event requires collection")
		}
	case KindIngestFailed:
		if e.DocKey == "" {
			return errors.New("failed event requires doc key")
		}
	case KindDocumentDeleted:
		if e.DocKey == "" || e.Collection == "" {
			return errors.New("delete event requires doc key and collection")
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.Items < 0 {
		return errors.New("items must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
