// Package publisher fans domain events out to the event store and sinks,
// either inline or through a bounded asynchronous buffer.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "rollguard/pkg/platform/audit"
	"rollguard/pkg/platform/audit/worker"
)

// ErrBufferFull is returned when the async buffer cannot take another event.
var ErrBufferFull = errors.New("audit buffer full")

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("audit publisher closed")

// Publisher implements the AuditPublisher port of every module.
type Publisher struct {
	store  audit.Store
	sinks  []audit.Sink
	logger *slog.Logger
	worker *worker.Worker

	bufferSize int
	buffer     chan audit.Event
	done       chan struct{}

	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking with a buffer of n events.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) { p.bufferSize = n }
}

// WithSinks adds sinks that receive every event after the store.
func WithSinks(sinks ...audit.Sink) Option {
	return func(p *Publisher) {
		for _, s := range sinks {
			if s != nil {
				p.sinks = append(p.sinks, s)
			}
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.bufferSize > 0 {
		p.buffer = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		p.worker = worker.NewWorker(store, p.buffer, p.logger, p.sinks...)
		go func() {
			defer close(p.done)
			_ = p.worker.Run(context.Background())
		}()
	} else {
		p.worker = worker.NewWorker(store, nil, p.logger, p.sinks...)
	}
	return p
}

// Emit stamps and delivers an event. In async mode it never blocks: a full
// buffer returns ErrBufferFull and the event is dropped.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	if p.buffer == nil {
		p.worker.Deliver(ctx, event)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.buffer <- event:
		return nil
	default:
		p.logger.WarnContext(ctx, "dropping event, buffer full", "action", event.Action)
		return ErrBufferFull
	}
}

// Recent returns up to limit stored events, newest first.
func (p *Publisher) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, limit)
}

// Close stops accepting events and waits for the buffer to drain.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	if p.buffer != nil {
		close(p.buffer)
		<-p.done
	}
}
