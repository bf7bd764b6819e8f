package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one websocket connection. Username is empty for anonymous clients.
type Client struct {
	ID       string
	Username string
	Send     chan []byte
	Conn     *websocket.Conn

	closeOnce sync.Once
	closing   chan struct{}
	doneOnce  sync.Once
	done      chan struct{}
}

// NewClient wraps conn. conn may be nil for connections driven in-process.
func NewClient(id, username string, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		ID:       id,
		Username: username,
		Send:     make(chan []byte, buffer),
		Conn:     conn,
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Close asks the connection to terminate. It does not wait.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closing)
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

// Closing is closed once Close was called.
func (c *Client) Closing() <-chan struct{} { return c.closing }

// Finish marks the disconnect cleanup of the connection as complete.
func (c *Client) Finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

// Done is closed after Finish.
func (c *Client) Done() <-chan struct{} { return c.done }

// ReadPump decodes frames until the connection fails and hands each one to
// handle, in arrival order, on the calling goroutine.
func (c *Client) ReadPump(maxMessageSize int64, log *zap.Logger, handle func(Frame)) {
	if maxMessageSize > 0 {
		c.Conn.SetReadLimit(maxMessageSize)
	}
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug("websocket read error", zap.String("conn", c.ID), zap.Error(err))
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			log.Debug("malformed frame", zap.String("conn", c.ID), zap.Error(err))
			f = Frame{Event: "", Data: data}
		}
		handle(f)
	}
}

// WritePump drains Send to the connection and keeps it alive with pings.
// It returns when Send is closed or a write fails.
func (c *Client) WritePump(log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug("websocket write error", zap.String("conn", c.ID), zap.Error(err))
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
