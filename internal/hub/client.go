package hub

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 64
)

// Client is one websocket connection subscribed to the signal feed
type Client struct {
	ID    string
	conn  *websocket.Conn
	send  chan Event
	sport string // Empty subscribes to all sports
}

// NewClient wraps an upgraded websocket connection
func NewClient(conn *websocket.Conn, sport string) *Client {
	return &Client{
		ID:    uuid.NewString(),
		conn:  conn,
		send:  make(chan Event, sendBufferSize),
		sport: sport,
	}
}

func (c *Client) matchesSport(sport string) bool {
	return c.sport == "" || c.sport == sport
}

// trySend queues an event without blocking; false means the buffer is full
func (c *Client) trySend(event Event) bool {
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// WritePump streams queued events to the connection and keeps it alive with
// pings. Runs in its own goroutine per client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				fmt.Printf("client %s write error: %v\n", c.ID, err)
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

// ReadPump drains the connection (clients only send pongs) and unregisters
// on disconnect. Runs in its own goroutine per client.
func (c *Client) ReadPump(h *Hub) {
	defer func() {
		h.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
