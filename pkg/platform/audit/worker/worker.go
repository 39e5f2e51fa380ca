package worker

import (
	"context"
	"log/slog"

	audit "rollguard/pkg/platform/audit"
)

// Worker drains an event channel into a store and the configured sinks.
// A failing sink is logged and skipped; it never stops the worker.
type Worker struct {
	store  audit.Store
	sinks  []audit.Sink
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger, sinks ...audit.Sink) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, sinks: sinks, inbox: inbox, logger: logger}
}

// Run processes events until ctx is cancelled or the inbox is closed.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.Deliver(ctx, event)
		}
	}
}

// Deliver stores one event and hands it to every sink.
func (w *Worker) Deliver(ctx context.Context, event audit.Event) {
	if w.store != nil {
		if err := w.store.Append(ctx, event); err != nil {
			w.logger.ErrorContext(ctx, "failed to store event", "action", event.Action, "error", err)
		}
	}
	for _, sink := range w.sinks {
		if err := sink.Append(ctx, event); err != nil {
			w.logger.WarnContext(ctx, "event sink failed", "action", event.Action, "error", err)
		}
	}
}
