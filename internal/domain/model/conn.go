package model

import "github.com/google/uuid"

// Conn is the live connection handle the transport hands to the core.
// Implementations must make Write safe for concurrent callers: the routing
// engine, the group fan-out and the bridge inbound path may all write to
// the same connection at once.
type Conn interface {
	// ID is the transport-assigned connection identity. It is what the
	// presence registry falls back to when only the handle is known
	// (abnormal disconnects).
	ID() uuid.UUID
	// Write sends one serialized envelope frame to the peer.
	Write(payload []byte) error
	// RemoteAddr describes the peer for logging.
	RemoteAddr() string
	Close() error
}
