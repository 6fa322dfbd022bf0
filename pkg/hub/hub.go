package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-eyeguide/internal/log"
)

const (
	// sendBuffer is each client's queue depth. Kept short so a slow viewer
	// sees recent frames instead of a backlog.
	sendBuffer = 4

	// maxConsecutiveDrops disconnects a client that has stopped reading.
	maxConsecutiveDrops = 100

	broadcastBuffer = 64

	// statusWait bounds how long Broadcast waits for room for a message
	// that must not be dropped.
	statusWait = 2 * time.Second
)

// ErrBroadcastFull is returned when a status message found no room in the
// broadcast queue within the wait.
var ErrBroadcastFull = errors.New("hub: broadcast queue full")

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]struct{}
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	statusWait time.Duration

	mu      sync.RWMutex
	count   int
	dropped uint64
	done    chan struct{}
}

// New creates a new Hub. A nil logger uses the package default.
func New(name string, logger *slog.Logger) *Hub {
	return &Hub{
		name:       name,
		logger:     log.Or(logger, "hub").With("hub", name),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		statusWait: statusWait,
	}
}

// Run owns the client set until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setCount()
			h.logger.Info("client connected", "client", c.id, "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.remove(c)
				h.logger.Info("client disconnected", "client", c.id, "clients", len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				h.deliver(c, msg)
			}
		}
	}
}

func (h *Hub) deliver(c *Client, msg Message) {
	select {
	case c.send <- msg:
		c.drops = 0
		return
	default:
	}

	if msg.Droppable() && c.drops < maxConsecutiveDrops {
		c.drops++
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
		return
	}
	h.remove(c)
	h.logger.Warn("dropped slow client", "client", c.id)
}

func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

// Broadcast queues msg for every client. Frames never block: a full queue
// drops them. Other messages wait up to statusWait for room. It reports
// false if the message was dropped.
func (h *Hub) Broadcast(msg Message) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
	}
	if msg.Droppable() {
		h.logger.Debug("broadcast queue full, dropping frame")
		return false
	}

	timer := time.NewTimer(h.statusWait)
	defer timer.Stop()
	select {
	case h.broadcast <- msg:
		return true
	case <-h.done:
	case <-timer.C:
	}
	h.logger.Warn("broadcast queue full, dropping status message")
	return false
}

// BroadcastJSON encodes and broadcasts a JSON message. It returns
// ErrBroadcastFull if the message could not be queued.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if !h.Broadcast(NewJSONMessage(data)) {
		return ErrBroadcastFull
	}
	return nil
}

// BroadcastFrame broadcasts a JPEG frame.
func (h *Hub) BroadcastFrame(jpeg []byte) bool {
	return h.Broadcast(NewFrameMessage(jpeg))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Dropped returns the number of frames skipped for slow clients.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
