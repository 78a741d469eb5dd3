package sinks

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.opentelemetry.io/otel"

	"github.com/capturelabs/capturesink/internal/notify"
)

// TopicSink publishes capture events to a Google Cloud Pub/Sub topic so
// downstream consumers can react to merges without polling the store.
type TopicSink struct {
	publisher *pubsub.Publisher
}

// NewTopicSink wraps a topic publisher client.
func NewTopicSink(publisher *pubsub.Publisher) *TopicSink {
	return &TopicSink{publisher: publisher}
}

// Consume publishes each event in the batch as a JSON message. Routing
// attributes and trace context ride along as message attributes. Publishes
// are issued for the whole batch before any result is awaited.
func (s *TopicSink) Consume(ctx context.Context, batch []notify.Event) error {
	if s == nil || s.publisher == nil {
		return nil
	}
	results := make([]*pubsub.PublishResult, 0, len(batch))
	for _, evt := range batch {
		data, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		msg := &pubsub.Message{Data: data}
		msg.Attributes = map[string]string{
			"kind":   string(evt.Kind),
			"docKey": evt.DocKey,
		}
		otel.GetTextMapPropagator().Inject(ctx, &pubsubCarrier{attrs: msg.Attributes})
		results = append(results, s.publisher.Publish(ctx, msg))
	}
	for _, result := range results {
		if _, err := result.Get(ctx); err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
	}
	return nil
}

// Close flushes outstanding messages and stops the publisher.
func (s *TopicSink) Close(context.Context) error {
	if s == nil || s.publisher == nil {
		return nil
	}
	s.publisher.Stop()
	return nil
}

// pubsubCarrier implements propagation.TextMapCarrier for Pub/Sub attributes.
type pubsubCarrier struct {
	attrs map[string]string
}

func (c *pubsubCarrier) Get(key string) string {
	return c.attrs[key]
}

func (c *pubsubCarrier) Set(key, value string) {
	c.attrs[key] = value
}

func (c *pubsubCarrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}
