package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/capturelabs/capturesink/internal/notify"
)

// LogSink emits structured logs for debugging capture streams. It is useful
// during development or audits where no broker or metrics backend is wired.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []notify.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("kind", string(evt.Kind)),
			zap.String("task_id", evt.TaskID),
			zap.String("doc_key", evt.DocKey),
			zap.String("collection", evt.Collection),
			zap.Int("items", evt.Items),
			zap.String("archive_uri", evt.ArchiveURI),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		}
		s.logger.Info("capture event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
