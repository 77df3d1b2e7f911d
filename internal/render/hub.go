package render

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"service-carousel/internal/platform/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

const (
	clientBuffer = 8
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = 512
)

// Message types sent to viewers.
const (
	MessageFrame = "frame"
	MessageClear = "clear"
)

// ErrHubClosed is returned when drawing on a closed hub.
var ErrHubClosed = errors.New("hub closed")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Message is the wire form of one draw command. Vertices are flattened x,y pairs.
type Message struct {
	Type     string    `json:"type"`
	Seq      uint64    `json:"seq"`
	Label    string    `json:"label,omitempty"`
	Vertices []float32 `json:"vertices,omitempty"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub is a Renderer that fans frames out to websocket viewers. Each frame is
// encoded once; a viewer whose buffer is full misses that frame instead of
// stalling the caller. A viewer that connects late is sent the latest frame.
type Hub struct {
	log      *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	dropped  atomic.Int64

	mu      sync.Mutex
	clients map[string]*client
	last    []byte
	closed  bool
}

// NewHub returns an empty hub. Metrics may be nil.
func NewHub(log *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		log:      log,
		metrics:  m,
		upgrader: websocket.Upgrader{CheckOrigin: sameOrigin},
		clients:  make(map[string]*client),
	}
}

// sameOrigin accepts requests without an Origin header and those whose origin
// host matches the request host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(u.Host), strings.TrimSpace(r.Host))
}

// DrawFrame implements Renderer.
func (h *Hub) DrawFrame(f Frame) error {
	return h.publish(Message{
		Type:     MessageFrame,
		Seq:      f.Seq,
		Label:    f.Label,
		Vertices: Flatten(f.Vertices),
	})
}

// Clear implements Renderer.
func (h *Hub) Clear() error {
	return h.publish(Message{Type: MessageClear})
}

func (h *Hub) publish(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.last = payload

	dropped := 0
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.dropped.Add(int64(dropped))
		h.metrics.AddFramesDropped(dropped)
		h.log.Debug("frame dropped for slow viewers", slog.Int("viewers", dropped))
	}
	return nil
}

// ServeHTTP upgrades the request and streams frames until the viewer leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, clientBuffer)}
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	h.log.Info("viewer connected", slog.String("client_id", c.id), slog.String("remote", r.RemoteAddr))

	go h.writePump(c)
	readPump(c.conn)

	h.unregister(c)
	h.log.Info("viewer disconnected", slog.String("client_id", c.id))
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if h.last != nil {
		c.send <- h.last
	}
	h.clients[c.id] = c
	h.metrics.SetViewers(len(h.clients))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	h.metrics.SetViewers(len(h.clients))
}

// readPump discards inbound messages; it returns once the connection fails.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(readLimit)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Clients returns the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many per-viewer frame deliveries were skipped.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every viewer. Later draws fail with ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	h.metrics.SetViewers(0)
}
