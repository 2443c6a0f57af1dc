package audit

import (
	"context"
	"log/slog"
)

// Sink receives audit events leaving the process (e.g. a Kafka topic).
type Sink interface {
	Produce(ctx context.Context, event Event) error
}

// Worker drains the publisher's queue into a sink. Sink failures are logged
// and dropped; the in-process store remains the durable copy.
type Worker struct {
	inbox  <-chan Event
	sink   Sink
	logger *slog.Logger
}

func NewWorker(inbox <-chan Event, sink Sink, logger *slog.Logger) *Worker {
	return &Worker{inbox: inbox, sink: sink, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Produce(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "audit sink produce failed",
					"action", event.Action,
					"entity_id", event.EntityID,
					"error", err,
				)
			}
		}
	}
}
