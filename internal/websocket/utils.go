package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds a client message; essays are the largest.
	maxMessageSize = 64 << 10
)

// Conn serializes writes to a WebSocket. Session observers, the confirmation
// prompt and the read loop all write from different goroutines.
type Conn struct {
	ws *websocket.Conn

	mu     sync.Mutex
	closed bool

	done     chan struct{}
	shutdown sync.Once
}

// NewConn wraps ws, installs the read limits and starts the keepalive pinger.
func NewConn(ws *websocket.Conn) *Conn {
	c := &Conn{ws: ws, done: make(chan struct{})}

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.keepalive()
	return c
}

func (c *Conn) keepalive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func (c *Conn) WriteTyped(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return websocket.ErrCloseSent
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (c *Conn) WriteError(code, errMsg string, fields map[string]string) error {
	return c.WriteTyped(ErrorResponse{
		Event:  EventError,
		Code:   code,
		Error:  errMsg,
		Fields: fields,
	})
}

// ReadJSON reads and decodes a message into the provided structure. Any
// message from the client also counts as liveness.
func (c *Conn) ReadJSON(v interface{}) error {
	if err := c.ws.ReadJSON(v); err != nil {
		return err
	}
	return c.ws.SetReadDeadline(time.Now().Add(pongWait))
}

// CloseNormal sends a normal close frame; the peer's close reply ends ReadJSON.
// Later writes are dropped.
func (c *Conn) CloseNormal(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// Shutdown stops the pinger and closes the socket. Safe to call twice.
func (c *Conn) Shutdown() error {
	var err error
	c.shutdown.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		err = c.ws.Close()
	})
	return err
}
