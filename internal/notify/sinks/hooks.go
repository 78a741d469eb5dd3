package sinks

import (
	"context"
	"fmt"

	"github.com/capturelabs/capturesink/internal/notify"
)

// Deliverer forwards a single event to every matching hook registration.
// *hooks.Dispatcher satisfies this interface.
type Deliverer interface {
	Deliver(ctx context.Context, evt notify.Event) error
}

// HookSink fans events out to registered webhook endpoints through a
// Deliverer. Retries, signing, and per-host pacing live in the hooks package.
type HookSink struct {
	deliverer Deliverer
}

// NewHookSink constructs a HookSink over the provided deliverer.
func NewHookSink(deliverer Deliverer) *HookSink {
	return &HookSink{deliverer: deliverer}
}

// Consume delivers every event in the batch. A failed delivery does not stop
// the rest of the batch; the first error is returned once all events ran.
func (s *HookSink) Consume(ctx context.Context, batch []notify.Event) error {
	if s == nil || s.deliverer == nil {
		return nil
	}
	var firstErr error
	for _, evt := range batch {
		if err := s.deliverer.Deliver(ctx, evt); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("deliver %s event: %w", evt.Kind, err)
		}
	}
	return firstErr
}

// Close implements the Sink interface; it performs no action.
func (s *HookSink) Close(context.Context) error {
	return nil
}
