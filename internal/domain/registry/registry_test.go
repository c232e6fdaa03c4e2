package registry

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id uuid.UUID

	mu     sync.Mutex
	writes [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.New()}
}

func (f *fakeConn) ID() uuid.UUID { return f.id }

func (f *fakeConn) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), p...))
	return nil
}

func (f *fakeConn) RemoteAddr() string { return "pipe" }
func (f *fakeConn) Close() error       { return nil }

func (f *fakeConn) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func TestPutGetRemove(t *testing.T) {
	r := New()
	c := newFakeConn()

	_, ok := r.Get(7)
	assert.False(t, ok)

	r.Put(7, c)
	got, ok := r.Get(7)
	require.True(t, ok)
	assert.Equal(t, c.ID(), got.ID())
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Remove(7))
	assert.False(t, r.Remove(7), "second remove is a no-op")
	_, ok = r.Get(7)
	assert.False(t, ok)
}

func TestPutReplacesExistingEntry(t *testing.T) {
	r := New()
	first := newFakeConn()
	second := newFakeConn()

	r.Put(7, first)
	r.Put(7, second)

	got, ok := r.Get(7)
	require.True(t, ok)
	assert.Equal(t, second.ID(), got.ID())
	assert.Equal(t, 1, r.Len(), "at most one entry per user id")
}

func TestRemoveByConn(t *testing.T) {
	r := New()
	a := newFakeConn()
	b := newFakeConn()
	r.Put(1, a)
	r.Put(2, b)

	id, ok := r.RemoveByConn(b)
	require.True(t, ok)
	assert.Equal(t, int64(2), id)
	assert.Equal(t, 1, r.Len())

	// Unknown handles resolve to nothing: the connection never logged in.
	_, ok = r.RemoveByConn(newFakeConn())
	assert.False(t, ok)
}

func TestDeliver(t *testing.T) {
	r := New()
	c := newFakeConn()
	r.Put(5, c)

	assert.True(t, r.Deliver(5, []byte("hello")))
	assert.False(t, r.Deliver(6, []byte("hello")))

	writes := c.written()
	require.Len(t, writes, 1)
	assert.Equal(t, []byte("hello"), writes[0])
}

func TestDeliverBatch(t *testing.T) {
	r := New()
	a := newFakeConn()
	b := newFakeConn()
	r.Put(1, a)
	r.Put(3, b)

	missed := r.DeliverBatch([]int64{1, 2, 3, 4}, []byte("fanout"))
	assert.Equal(t, []int64{2, 4}, missed)
	require.Len(t, a.written(), 1)
	require.Len(t, b.written(), 1)
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		id := int64(i % 8)
		wg.Add(3)
		go func() {
			defer wg.Done()
			r.Put(id, newFakeConn())
		}()
		go func() {
			defer wg.Done()
			r.Deliver(id, []byte("x"))
		}()
		go func() {
			defer wg.Done()
			r.Remove(id)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, r.Len(), 8)
}
