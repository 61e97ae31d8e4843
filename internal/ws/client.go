package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"magicpic_admin/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	sendBuffer = 64
)

// Client is one open view stream of an admin.
type Client struct {
	AdminKey string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
	View     *View

	closed    chan struct{}
	closeOnce sync.Once
	log       *slog.Logger
}

func NewClient(adminKey string, conn *websocket.Conn, hub *Hub, view *View) *Client {
	return &Client{
		AdminKey: adminKey,
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		Hub:      hub,
		View:     view,
		closed:   make(chan struct{}),
		log:      logger.Component("ws").With("admin", adminKey),
	}
}

// Run serves the stream until the connection drops or ctx ends.
func (c *Client) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.Hub.Register(c)
	defer c.Hub.Unregister(c)

	go c.writePump()
	c.trySend(encode(MsgReady, nil))

	c.View.Attach(c.trySend)
	c.View.Start(ctx)

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.closed:
		}
	}()

	c.readPump(ctx)
	cancel()
	c.View.Wait()
}

// Close ends the stream after queued messages are flushed. Safe to call
// more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *Client) trySend(msg []byte) {
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.Send <- msg:
	default:
		c.log.Warn("ws send buffer full, dropping message")
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer c.Close()

	c.Conn.SetReadLimit(4096)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("ws read error", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.trySend(encode(MsgError, ErrorPayload{Message: "invalid message"}))
			continue
		}
		if msg.Type == MsgPing {
			c.trySend(encode(MsgPong, nil))
			continue
		}
		if err := c.View.Handle(ctx, msg); err != nil {
			c.log.Debug("ws message rejected", "type", msg.Type, "error", err)
			c.trySend(encode(MsgError, ErrorPayload{Message: err.Error()}))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.flush()
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("ws write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// flush writes whatever is still queued.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.Send:
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
