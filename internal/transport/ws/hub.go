// Package ws streams audit events to connected authority dashboards.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"rollguard/internal/platform/metrics"
	"rollguard/pkg/platform/audit"
)

const (
	sinkName      = "websocket"
	defaultBuffer = 64
	writeTimeout  = 5 * time.Second
)

// Message is the frame written to dashboard clients.
type Message struct {
	Type  string       `json:"type"`
	Event *audit.Event `json:"event,omitempty"`
}

type subscriber chan audit.Event

// Hub fans events out to every connected client. A slow client loses events
// rather than stalling the publisher.
type Hub struct {
	mu      sync.RWMutex
	subs    map[subscriber]struct{}
	buffer  int
	origins []string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Hub)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithAllowedOrigins sets the origin patterns accepted on upgrade.
func WithAllowedOrigins(patterns []string) Option {
	return func(h *Hub) { h.origins = patterns }
}

func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{subs: make(map[subscriber]struct{}), buffer: defaultBuffer}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Append implements audit.Sink.
func (h *Hub) Append(_ context.Context, event audit.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub <- event:
			h.metrics.IncrementPublished(sinkName)
		default:
			h.metrics.IncrementDropped(sinkName)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) subscribe() subscriber {
	sub := make(subscriber, h.buffer)
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	h.metrics.ClientConnected()
	return sub
}

func (h *Hub) unsubscribe(sub subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	h.metrics.ClientDisconnected()
}

// ServeHTTP upgrades the connection and streams events until either side
// goes away. Client frames are read and discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.subscribe()
	defer h.unsubscribe(sub)

	if err := wsjson.Write(ctx, conn, Message{Type: "ready"}); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "write_failed")
		return
	}

	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-readErr:
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case evt := <-sub:
			writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, Message{Type: evt.Action, Event: &evt})
			cancelWrite()
			if err != nil {
				h.logger.DebugContext(ctx, "websocket write failed", "error", err)
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		}
	}
}
