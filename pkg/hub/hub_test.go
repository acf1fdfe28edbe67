package hub

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fws "github.com/gofiber/websocket/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-pano/internal/log"
	"github.com/teslashibe/go-pano/pkg/session"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	require.Eventually(t, h.IsRunning, time.Second, 5*time.Millisecond)
	return h, cancel
}

func serveEvents(t *testing.T, h *Hub) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws/events", fws.New(func(c *fws.Conn) {
		NewClient(h, c, c.Query("session")).Run()
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })

	return "ws://" + ln.Addr().String() + "/ws/events"
}

func TestHub_BroadcastsSessionEvents(t *testing.T) {
	h, _ := startHub(t)
	url := serveEvents(t, h)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.Observe(session.Event{
		Session: "abc",
		Mode:    session.ModePanorama,
		From:    session.SourceOpened,
		State:   session.Capturing,
	})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "abc", got["session"])
	assert.Equal(t, "capturing", got["state"])
	assert.Equal(t, "source_opened", got["from"])
}

func TestHub_ClientDisconnect(t *testing.T) {
	h, _ := startHub(t)
	url := serveEvents(t, h)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	ws.Close()
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	h, cancel := startHub(t)
	url := serveEvents(t, h)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool { return !h.IsRunning() }, time.Second, 5*time.Millisecond)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = ws.ReadMessage()
	assert.Error(t, err, "connection should be closed once the hub stops")
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := New("idle", log.Discard())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			h.Broadcast(NewEventMessage("", []byte(`{}`)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked without a running hub")
	}
	assert.Equal(t, uint64(300-256), h.Dropped())
}

func TestHub_BroadcastJSONError(t *testing.T) {
	h := New("json", log.Discard())
	assert.Error(t, h.BroadcastJSON(func() {}))
	assert.Zero(t, h.ClientCount())
}

func TestHub_SessionFilter(t *testing.T) {
	h, _ := startHub(t)
	url := serveEvents(t, h)

	ws, _, err := websocket.DefaultDialer.Dial(url+"?session=want", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.Observe(session.Event{Session: "other", State: session.Capturing})
	h.Observe(session.Event{Session: "want", State: session.Stitching})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "want", got["session"])
	assert.Equal(t, "stitching", got["state"])
}

func TestMessage_Wants(t *testing.T) {
	assert.True(t, NewEventMessage("a", nil).wants(""))
	assert.True(t, NewEventMessage("", nil).wants("a"))
	assert.True(t, NewEventMessage("a", nil).wants("a"))
	assert.False(t, NewEventMessage("a", nil).wants("b"))
}
