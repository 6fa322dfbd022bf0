package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// Viewer connection timing. A viewer that answers no ping within
// idleTimeout is considered gone.
const (
	writeTimeout   = 10 * time.Second
	idleTimeout    = 60 * time.Second
	pingInterval   = idleTimeout * 9 / 10
	maxViewerFrame = 4 * 1024
)

// Conn is the part of a websocket connection the hub uses.
// *websocket.Conn from gofiber/websocket satisfies it.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one viewer of the feed.
type Client struct {
	id   string
	hub  *Hub
	conn Conn
	send chan Message

	// drops counts consecutive frames skipped; only the hub goroutine touches it.
	drops int
}

// NewClient registers conn with the hub. If the hub has already stopped the
// client starts out closed and Run returns as soon as the connection does.
func NewClient(hub *Hub, conn Conn, id string) *Client {
	c := &Client{id: id, hub: hub, conn: conn, send: make(chan Message, sendBuffer)}
	select {
	case hub.register <- c:
	case <-hub.done:
		close(c.send)
	}
	return c
}

// Run serves the viewer until either side closes. The websocket handler
// must not return before Run does.
func (c *Client) Run() {
	go c.forward()
	c.watch()
}

// watch reads until the connection fails. Viewers send nothing but control
// frames, so reading only extends the deadline on pong.
func (c *Client) watch() {
	defer c.leave()

	c.conn.SetReadLimit(maxViewerFrame)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	}
	extend("")
	c.conn.SetPongHandler(extend)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
	c.conn.Close()
}

// forward is the connection's single writer: queued messages plus pings.
func (c *Client) forward() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer c.conn.Close()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, nil)
				return
			}
			kind, data = websocket.TextMessage, msg.Data
			if msg.Type == BinaryMessage {
				kind = websocket.BinaryMessage
			}
		case <-ping.C:
			kind = websocket.PingMessage
		}
		if err := c.write(kind, data); err != nil {
			return
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(kind, data)
}
