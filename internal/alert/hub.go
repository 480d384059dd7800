package alert

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pathakanu/noteminder/internal/model"
	"go.uber.org/zap"
)

// Event types sent to dashboard clients.
const (
	EventTriggered = "reminder_triggered"
	EventDismissed = "reminder_dismissed"
)

const writeWait = 5 * time.Second

// Event is one message on the websocket feed.
type Event struct {
	Type   string             `json:"type"`
	Note   *model.Note        `json:"note,omitempty"`
	Effect model.VisualEffect `json:"effect,omitempty"`
	At     time.Time          `json:"at"`
}

// upgrader keeps gorilla's same-origin check.
var upgrader = websocket.Upgrader{}

// Hub fans reminder events out to connected dashboards. One goroutine,
// Run, owns the client set.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Event
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	count      chan chan int
	done       chan struct{}
	logger     *zap.Logger
}

// NewHub returns a hub; call Run to start it.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			return

		case conn := <-h.register:
			h.clients[conn] = true

		case conn := <-h.unregister:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}

		case reply := <-h.count:
			reply <- len(h.clients)

		case ev := <-h.broadcast:
			for conn := range h.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(ev); err != nil {
					h.logger.Debug("websocket write failed", zap.Error(err))
					delete(h.clients, conn)
					conn.Close()
				}
			}
		}
	}
}

// Broadcast queues ev for every client. Events are dropped when the queue
// is full or the hub has stopped.
func (h *Hub) Broadcast(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case h.broadcast <- ev:
	case <-h.done:
	default:
		h.logger.Warn("websocket queue full, dropping event", zap.String("type", ev.Type))
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}
	defer func() {
		select {
		case h.unregister <- conn:
		case <-h.done:
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
