package tcp

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// conn wraps a raw TCP connection as a model.Conn. Frames are
// newline-delimited JSON. Writes are serialized with a mutex: the owning
// read loop, other users' chat handlers and the bridge inbound path all
// write concurrently.
type conn struct {
	id           uuid.UUID
	nc           net.Conn
	writeTimeout time.Duration

	mu sync.Mutex
}

func newConn(nc net.Conn, writeTimeout time.Duration) *conn {
	return &conn{
		id:           uuid.New(),
		nc:           nc,
		writeTimeout: writeTimeout,
	}
}

func (c *conn) ID() uuid.UUID { return c.id }

func (c *conn) Write(payload []byte) error {
	frame := make([]byte, 0, len(payload)+1)
	frame = append(frame, payload...)
	frame = append(frame, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.nc.Write(frame)
	return err
}

func (c *conn) RemoteAddr() string {
	return c.nc.RemoteAddr().String()
}

func (c *conn) Close() error {
	return c.nc.Close()
}
