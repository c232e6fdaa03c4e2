// Package registry holds the process-local presence table: which
// authenticated users currently own a live connection on this process.
//
// The registry is the only mutable structure shared between connection
// handlers and the bridge inbound path, so every entry point is safe for
// arbitrary concurrent callers. Local deliveries happen under the same
// mutex that guards the table, which is what serializes two messages
// addressed to the same still-connected recipient.
package registry

import (
	"sync"

	"github.com/relaychat/relayd/internal/domain/model"
)

// Registry maps a user id to its live connection handle. At most one entry
// exists per user id; a second Put for the same id replaces the first.
type Registry struct {
	mu    sync.Mutex
	conns map[int64]model.Conn
}

func New() *Registry {
	return &Registry{conns: make(map[int64]model.Conn)}
}

// Put records userID as connected through conn.
func (r *Registry) Put(userID int64, conn model.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[userID] = conn
}

// Get returns the live handle for userID, if any.
func (r *Registry) Get(userID int64) (model.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[userID]
	return c, ok
}

// Remove drops the entry for userID. It reports whether an entry existed.
func (r *Registry) Remove(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[userID]
	delete(r.conns, userID)
	return ok
}

// RemoveByConn resolves a bare handle back to its user id and drops the
// entry. This is the abnormal-disconnect path, where the transport only
// knows which connection died. The scan is linear; the table is keyed by
// user id, not handle.
func (r *Registry) RemoveByConn(conn model.Conn) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.conns {
		if c.ID() == conn.ID() {
			delete(r.conns, id)
			return id, true
		}
	}
	return 0, false
}

// Deliver writes payload to userID's connection if one is registered here,
// holding the registry for the duration of the write. Returns false when
// the user is not locally present; a write error still counts as delivered
// (the connection teardown path owns the cleanup).
func (r *Registry) Deliver(userID int64, payload []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[userID]
	if !ok {
		return false
	}
	_ = c.Write(payload)
	return true
}

// DeliverBatch writes payload to every locally present user in ids within a
// single critical section and returns the ids that were not present. Group
// fan-out uses this so the whole batch sees one consistent view of local
// presence.
func (r *Registry) DeliverBatch(ids []int64, payload []byte) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var missed []int64
	for _, id := range ids {
		c, ok := r.conns[id]
		if !ok {
			missed = append(missed, id)
			continue
		}
		_ = c.Write(payload)
	}
	return missed
}

// Len reports the number of locally connected users.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
