package network

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/epidemica/contagio-server/internal/platform/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Minimum interval between viewer commands from one connection.
	commandInterval = time.Second
)

// Client represents one connected viewer. Viewers are strictly read-only:
// the only inbound messages are display-side requests, never simulation
// mutations.
type Client struct {
	hub             *Hub
	conn            *websocket.Conn
	send            chan []byte
	lastCommandTime time.Time
}

// ViewerCommand represents an incoming request from a viewer.
type ViewerCommand struct {
	Type string `json:"type"` // "STATS", "SNAPSHOT"
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 64),
	}
}

// Register adds the client to the hub.
func (c *Client) Register() {
	c.hub.register <- c
}

// ReadPump pumps messages from the websocket connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket read: %v", err)
				metrics.Get().RecordWSError()
			}
			break
		}
		metrics.Get().RecordWSMessage(true)

		var cmd ViewerCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.hub.logger.Error("Failed to parse ViewerCommand from WebSocket: %v", err)
			continue
		}

		c.handleCommand(cmd)
	}
}

func (c *Client) handleCommand(cmd ViewerCommand) {
	// Rate limiting check
	if time.Since(c.lastCommandTime) < commandInterval {
		c.hub.logger.Warn("Rate limit exceeded for viewer command %s", cmd.Type)
		return
	}
	c.lastCommandTime = time.Now()

	snap := c.hub.LastSnapshot()
	if snap == nil {
		// Nothing to report before the first tick.
		return
	}

	switch cmd.Type {
	case "STATS":
		c.reply(envelope{Kind: "stats", Payload: snap.Stats})
	case "SNAPSHOT":
		c.reply(envelope{Kind: "snapshot", Payload: snap})
	default:
		c.hub.logger.Warn("Unknown ViewerCommand type: %s", cmd.Type)
	}
}

// reply sends a message to this client only.
func (c *Client) reply(env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		c.hub.logger.Error("Failed to serialize viewer reply: %v", err)
		return
	}
	select {
	case c.send <- payload:
		metrics.Get().RecordWSMessage(false)
	default:
		metrics.Get().RecordWSError()
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
