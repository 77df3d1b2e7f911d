package render

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"service-carousel/internal/platform/logger"
	"service-carousel/internal/platform/metrics"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func gatherCounter(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestHub_broadcasts_frames(t *testing.T) {
	hub := NewHub(logger.Discard(), nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	verts := TextToVertices("A", 0, 0)
	require.NoError(t, hub.DrawFrame(Frame{Seq: 7, Label: "A", Vertices: verts}))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageFrame, msg.Type)
	assert.Equal(t, uint64(7), msg.Seq)
	assert.Equal(t, "A", msg.Label)
	assert.Len(t, msg.Vertices, len(verts)*2)

	require.NoError(t, hub.Clear())
	assert.Equal(t, MessageClear, readMessage(t, conn).Type)
}

func TestHub_late_viewer_gets_last_frame(t *testing.T) {
	hub := NewHub(logger.Discard(), nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	require.NoError(t, hub.DrawFrame(Frame{Seq: 1, Label: "first"}))
	require.NoError(t, hub.DrawFrame(Frame{Seq: 2, Label: "second"}))

	conn := dialHub(t, srv)
	msg := readMessage(t, conn)
	assert.Equal(t, uint64(2), msg.Seq)
	assert.Equal(t, "second", msg.Label)
}

func TestHub_drops_for_full_buffer(t *testing.T) {
	m := metrics.New()
	hub := NewHub(logger.Discard(), m)

	// A viewer that never drains its buffer.
	slow := &client{id: "slow", send: make(chan []byte, 1)}
	hub.mu.Lock()
	hub.clients[slow.id] = slow
	hub.mu.Unlock()

	require.NoError(t, hub.DrawFrame(Frame{Seq: 1}))
	require.NoError(t, hub.DrawFrame(Frame{Seq: 2}))
	require.NoError(t, hub.DrawFrame(Frame{Seq: 3}))

	assert.Equal(t, int64(2), hub.Dropped())
	assert.Equal(t, 2.0, gatherCounter(t, m, "carousel_frames_dropped_total"))
}

func TestHub_viewer_disconnect(t *testing.T) {
	m := metrics.New()
	hub := NewHub(logger.Discard(), m)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(logger.Discard(), nil)
	hub.Close()
	hub.Close()
	assert.ErrorIs(t, hub.DrawFrame(Frame{}), ErrHubClosed)
	assert.ErrorIs(t, hub.Clear(), ErrHubClosed)
}

func TestSameOrigin(t *testing.T) {
	req := httptest.NewRequest("GET", "http://carousel.local/ws", nil)
	assert.True(t, sameOrigin(req))

	req.Header.Set("Origin", "http://carousel.local")
	assert.True(t, sameOrigin(req))

	req.Header.Set("Origin", "http://elsewhere.example")
	assert.False(t, sameOrigin(req))
}
