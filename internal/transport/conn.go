package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a gorilla connection to the chat core's writer
// contract. The connection allows one concurrent writer, so envelope
// writes and keepalive pings serialize through one mutex.
type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu   sync.Mutex
	stop chan struct{}
	once sync.Once
}

func newWSConn(ws *websocket.Conn, writeTimeout, pingInterval time.Duration) *wsConn {
	c := &wsConn{
		ws:           ws,
		writeTimeout: writeTimeout,
		stop:         make(chan struct{}),
	}
	if pingInterval > 0 {
		go c.keepalive(pingInterval)
	}
	return c
}

// WriteMessage sends one text frame under the write deadline.
func (c *wsConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame best-effort and tears the connection down.
// Safe to call more than once.
func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.stop)
		c.mu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.mu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// keepalive pings on an interval shorter than the read deadline so idle
// connections stay alive and dead ones get noticed.
func (c *wsConn) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
