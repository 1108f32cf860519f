package chat

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"researchhub-chat/internal/user"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Maximum frame size allowed from peer.
	sendBuffer     = 256
)

// Client is the middleman between one websocket connection and the hub.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	principal user.Principal

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, principal user.Principal) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		principal: principal,
		send:      make(chan []byte, sendBuffer),
	}
}

// deliver queues an outbound payload without blocking. A consumer that
// cannot keep up loses events; it recovers by re-fetching history.
func (c *Client) deliver(payload []byte) {
	if payload == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *Client) sendError(message string) {
	c.deliver(marshalEvent(EventError, errorPayload{Message: message}))
}

// closeSend shuts the outbound queue exactly once, stopping writePump.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps frames from the websocket into the hub. One goroutine
// per connection; events are handled inline, so a blocking persistence
// call stalls only this session.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("read error: %v", err)
			}
			break
		}
		c.hub.Handle(context.Background(), c, raw)
	}
}

// writePump pumps queued payloads to the websocket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
