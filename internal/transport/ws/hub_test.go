package ws

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollguard/pkg/platform/audit"
)

func TestHubStreamsEvents(t *testing.T) {
	hub := NewHub(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var ready Message
	require.NoError(t, wsjson.Read(ctx, conn, &ready))
	assert.Equal(t, "ready", ready.Type)
	assert.Equal(t, 1, hub.Clients())

	require.NoError(t, hub.Append(ctx, audit.Event{Action: string(audit.EventFlagRaised), EntityID: "B-07", Tier: "Critical"}))

	var msg Message
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, string(audit.EventFlagRaised), msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, "B-07", msg.Event.EntityID)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubAppendWithoutClients(t *testing.T) {
	hub := NewHub()
	assert.NoError(t, hub.Append(context.Background(), audit.Event{Action: "noop"}))
}

func TestHubDropsForSlowClient(t *testing.T) {
	hub := NewHub(WithBuffer(1))
	sub := hub.subscribe()
	defer hub.unsubscribe(sub)

	ctx := context.Background()
	require.NoError(t, hub.Append(ctx, audit.Event{Action: "first"}))
	require.NoError(t, hub.Append(ctx, audit.Event{Action: "second"}))

	assert.Equal(t, "first", (<-sub).Action)
	assert.Empty(t, sub)
}
