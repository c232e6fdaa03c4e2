package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// conn adapts a websocket connection to model.Conn: one envelope per text
// frame. Gorilla permits a single concurrent writer, so writes go through
// a mutex.
type conn struct {
	id           uuid.UUID
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu sync.Mutex
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *conn {
	return &conn{
		id:           uuid.New(),
		ws:           ws,
		writeTimeout: writeTimeout,
	}
}

func (c *conn) ID() uuid.UUID { return c.id }

func (c *conn) Write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

func (c *conn) Close() error {
	return c.ws.Close()
}
