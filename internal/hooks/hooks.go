// Package hooks manages webhook registrations and the outbound delivery of
// capture events to their endpoints.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/capturelabs/capturesink/internal/notify"
)

// ErrNotFound is returned when no registration matches the given id.
var ErrNotFound = errors.New("hook registration not found")

// EventAny subscribes a registration to every event kind.
const EventAny = "*"

// Registration is a subscriber endpoint for capture events.
type Registration struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Matches reports whether the registration subscribes to the event kind.
func (r Registration) Matches(event string) bool {
	return r.Event == event || r.Event == EventAny
}

// Validate checks the subscriber-supplied fields. ID and CreatedAt are
// assigned by the service and not validated here.
func (r Registration) Validate() error {
	if !KnownEvent(r.Event) {
		return fmt.Errorf("unknown event %q", r.Event)
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url host is required")
	}
	return nil
}

// KnownEvent reports whether the given string names a capture event kind
// or the wildcard.
func KnownEvent(event string) bool {
	switch notify.Kind(event) {
	case notify.KindIngested, notify.KindIngestFailed, notify.KindDocumentDeleted:
		return true
	}
	return event == EventAny
}

// Store persists hook registrations. Implementations must be safe for
// concurrent use.
type Store interface {
	Create(ctx context.Context, reg Registration) error
	Get(ctx context.Context, id string) (Registration, error)
	List(ctx context.Context) ([]Registration, error)
	Delete(ctx context.Context, id string) error
}
