package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/thesyncim/confcheck/pkg/relay"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer is how many statuses may queue for one subscriber before
	// new ones are dropped.
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the apps are served from any host in tests
	},
}

// WSMessage is the envelope of every event pushed to the apps.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// subscriber is one websocket client. Statuses are queued on send and
// written by its own goroutine so Broadcast never waits on the network.
type subscriber struct {
	stream string
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func newSubscriber(stream string) *subscriber {
	return &subscriber{
		stream: stream,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// queue hands data to the writer without blocking. It reports false when
// the buffer is full.
func (s *subscriber) queue(data []byte) bool {
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// Hub pushes stream status changes to the apps watching a stream.
type Hub struct {
	log     *log.Logger
	status  func(stream string) relay.Status
	clients prometheus.Gauge
	dropped prometheus.Counter

	mu   sync.RWMutex
	subs map[*websocket.Conn]*subscriber
}

// NewHub returns a hub registering its metrics with reg.
func NewHub(logger *log.Logger, reg prometheus.Registerer) *Hub {
	h := &Hub{
		log: logger,
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confcheck_event_subscribers",
			Help: "Number of connected event subscribers",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confcheck_event_messages_dropped_total",
			Help: "Status messages dropped because a subscriber fell behind",
		}),
		subs: make(map[*websocket.Conn]*subscriber),
	}
	reg.MustRegister(h.clients, h.dropped)
	return h
}

// HandleEvents upgrades the request and streams the status of the stream
// named by the streamName query parameter, starting with its current status.
func (h *Hub) HandleEvents(w http.ResponseWriter, r *http.Request) {
	stream := r.URL.Query().Get("streamName")
	if stream == "" {
		http.Error(w, "streamName is required", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	sub := newSubscriber(stream)
	if h.status != nil {
		data, err := statusMessage(h.status(stream))
		if err != nil {
			h.log.Warn().Err(err).Msg("failed to encode initial status")
			conn.Close()
			return
		}
		sub.queue(data)
	}

	// Registered before the writer starts, so a client that has read its
	// initial status also receives every later broadcast.
	h.mu.Lock()
	h.subs[conn] = sub
	n := len(h.subs)
	h.mu.Unlock()
	h.clients.Inc()
	h.log.Debug().Str("stream", stream).Int("subscribers", n).Msg("event subscriber connected")
	go h.writeLoop(conn, sub)

	defer func() {
		sub.stop()
		h.mu.Lock()
		_, ok := h.subs[conn]
		delete(h.subs, conn)
		n := len(h.subs)
		h.mu.Unlock()
		if ok {
			h.clients.Dec()
		}
		conn.Close()
		h.log.Debug().Str("stream", stream).Int("subscribers", n).Msg("event subscriber disconnected")
	}()

	// Read until the client goes away; the apps send nothing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Msg("websocket error")
			}
			return
		}
	}
}

func statusMessage(st relay.Status) ([]byte, error) {
	return json.Marshal(WSMessage{Type: "status", Payload: st})
}

// writeLoop is the only writer of data frames on conn. A failed write
// closes the connection, which ends the read loop of HandleEvents.
func (h *Hub) writeLoop(conn *websocket.Conn, sub *subscriber) {
	for {
		select {
		case <-sub.done:
			return
		case data := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Warn().Err(err).Str("stream", sub.stream).Msg("failed to send status to subscriber")
				conn.Close()
				return
			}
		}
	}
}

// Broadcast queues st for the subscribers of st.Name. It never blocks: a
// subscriber whose queue is full misses the status.
func (h *Hub) Broadcast(st relay.Status) {
	data, err := statusMessage(st)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal status message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.stream != st.Name {
			continue
		}
		if !sub.queue(data) {
			h.dropped.Inc()
			h.log.Warn().Str("stream", st.Name).Msg("subscriber is too slow, dropping status")
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*websocket.Conn]*subscriber)
	h.mu.Unlock()
	for conn, sub := range subs {
		sub.stop()
		// WriteControl may run concurrently with the writer.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		h.clients.Dec()
	}
}
