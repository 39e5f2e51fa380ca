package audit

import "context"

// Store persists events so the dashboard can replay recent history.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Sink receives every emitted event after it is stored. Sinks must not block.
type Sink interface {
	Append(ctx context.Context, event Event) error
}
