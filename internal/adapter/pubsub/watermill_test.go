package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inboundRecorder struct {
	mu       sync.Mutex
	received []struct {
		userID  int64
		payload []byte
	}
	notify chan struct{}
}

func newInboundRecorder() *inboundRecorder {
	return &inboundRecorder{notify: make(chan struct{}, 16)}
}

func (r *inboundRecorder) record(userID int64, payload []byte) {
	r.mu.Lock()
	r.received = append(r.received, struct {
		userID  int64
		payload []byte
	}{userID, append([]byte(nil), payload...)})
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *inboundRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound delivery")
	}
}

func (r *inboundRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

func TestInProcRoundTrip(t *testing.T) {
	b := NewInProc(watermill.NopLogger{})
	rec := newInboundRecorder()
	b.Bind(rec.record)
	require.NoError(t, b.Start(context.Background()))
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.Subscribe(ctx, 42))
	require.NoError(t, b.Publish(ctx, 42, []byte(`{"msgid":"chat","msg":"hi"}`)))

	rec.wait(t)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.received, 1)
	assert.Equal(t, int64(42), rec.received[0].userID)
	assert.JSONEq(t, `{"msgid":"chat","msg":"hi"}`, string(rec.received[0].payload))
}

func TestInProcUnsubscribeStopsDelivery(t *testing.T) {
	b := NewInProc(watermill.NopLogger{})
	rec := newInboundRecorder()
	b.Bind(rec.record)
	require.NoError(t, b.Start(context.Background()))
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.Subscribe(ctx, 7))
	require.NoError(t, b.Publish(ctx, 7, []byte("one")))
	rec.wait(t)

	require.NoError(t, b.Unsubscribe(ctx, 7))
	// Give the subscription teardown a beat before publishing again.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, b.Publish(ctx, 7, []byte("two")))
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 1, rec.count())
}

func TestInProcSubscribeIsIdempotent(t *testing.T) {
	b := NewInProc(watermill.NopLogger{})
	rec := newInboundRecorder()
	b.Bind(rec.record)
	require.NoError(t, b.Start(context.Background()))
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.Subscribe(ctx, 7))
	require.NoError(t, b.Subscribe(ctx, 7))
	require.NoError(t, b.Publish(ctx, 7, []byte("once")))
	rec.wait(t)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 1, rec.count(), "double subscribe must not duplicate delivery")
}

func TestStartWithoutBindFails(t *testing.T) {
	b := NewInProc(watermill.NopLogger{})
	assert.Error(t, b.Start(context.Background()))
}
