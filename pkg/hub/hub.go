package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-pano/internal/log"
	"github.com/teslashibe/go-pano/pkg/session"
)

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	name   string
	logger *slog.Logger

	// Registered clients
	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Guards clients for ClientCount
	mu sync.RWMutex

	running atomic.Bool
	dropped atomic.Uint64
}

// New creates a new Hub. A nil logger uses the global logger.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = log.L()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is done, closing
// every client. Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("hub: client connected", "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("hub: client disconnected", "clients", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !message.wants(client.session) {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Too slow to keep up; drop it.
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("hub: dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a message for all connected clients. It never blocks;
// when the queue is full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		h.logger.Warn("hub: broadcast queue full, dropping message")
	}
}

// BroadcastJSON encodes v and broadcasts it to every client.
func (h *Hub) BroadcastJSON(v interface{}) error {
	return h.broadcastJSON("", v)
}

func (h *Hub) broadcastJSON(session string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewEventMessage(session, data))
	return nil
}

// Observe implements session.Observer by broadcasting the event as JSON to
// clients following all sessions or this one.
func (h *Hub) Observe(ev session.Event) {
	if err := h.broadcastJSON(ev.Session, ev); err != nil {
		h.logger.Warn("hub: encode event", "err", err)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many broadcasts were discarded.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// IsRunning returns whether the hub loop is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
