package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/capturelabs/capturesink/internal/notify"
)

// PrometheusSink exports ingest metrics via Prometheus. It owns the
// collectors for merge outcomes, appended items, and document deletions.
type PrometheusSink struct {
	ingests        *prometheus.CounterVec
	itemsAppended  *prometheus.CounterVec
	deletes        prometheus.Counter
	ingestDuration *prometheus.HistogramVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capturesink_ingests_total",
			Help: "Webhook ingests partitioned by collection and result.",
		}, []string{"collection", "result"}),
		itemsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capturesink_items_appended_total",
			Help: "New items appended to stored documents per collection.",
		}, []string{"collection"}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capturesink_documents_deleted_total",
			Help: "Documents removed through the admin API.",
		}),
		ingestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "capturesink_ingest_duration_seconds",
			Help:    "Ingest latency partitioned by collection and result.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"collection", "result"}),
	}
	for _, collector := range []prometheus.Collector{
		s.ingests,
		s.itemsAppended,
		s.deletes,
		s.ingestDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register capture collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []notify.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt notify.Event) {
	switch evt.Kind {
	case notify.KindIngested:
		s.recordIngest(evt, "success")
		if evt.Items > 0 {
			s.itemsAppended.WithLabelValues(collectionLabel(evt)).Add(float64(evt.Items))
		}
	case notify.KindIngestFailed:
		s.recordIngest(evt, "error")
	case notify.KindDocumentDeleted:
		s.deletes.Inc()
	}
}

func (s *PrometheusSink) recordIngest(evt notify.Event, result string) {
	collection := collectionLabel(evt)
	s.ingests.WithLabelValues(collection, result).Inc()
	if evt.Dur > 0 {
		s.ingestDuration.WithLabelValues(collection, result).Observe(evt.Dur.Seconds())
	}
}

func collectionLabel(evt notify.Event) string {
	if evt.Collection == "" {
		return "unknown"
	}
	return evt.Collection
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
