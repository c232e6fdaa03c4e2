// Package pubsub provides the cross-process bridge implementations. Every
// bridge speaks the same contract: one channel per user id, fire-and-forget
// publish, and an inbound callback invoked on the bridge's own goroutine.
package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/relaychat/relayd/internal/service"
)

const redisChannelPrefix = "user:"

func redisChannel(userID int64) string {
	return redisChannelPrefix + strconv.FormatInt(userID, 10)
}

// RedisBridge relays messages between processes over redis pub/sub, one
// channel per user. Publishes run behind a circuit breaker: with redis down,
// a relay degrades to a logged drop instead of stalling every sender on a
// connection timeout.
type RedisBridge struct {
	log     *slog.Logger
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	sub     *redis.PubSub
	inbound service.InboundFunc
	done    chan struct{}
}

func NewRedis(log *slog.Logger, client *redis.Client) *RedisBridge {
	return &RedisBridge{
		log:    log,
		client: client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "redis-publish",
			Timeout: 10 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures > 5
			},
		}),
		done: make(chan struct{}),
	}
}

func (b *RedisBridge) Bind(fn service.InboundFunc) {
	b.inbound = fn
}

// Start opens the subscriber connection and runs the receive loop. Bind must
// have been called first.
func (b *RedisBridge) Start(ctx context.Context) error {
	if b.inbound == nil {
		return fmt.Errorf("redis bridge: no inbound callback bound")
	}
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis bridge: %w", err)
	}
	// Subscriber connection with no channels yet; logins add them.
	b.sub = b.client.Subscribe(ctx)
	go b.receiveLoop()
	return nil
}

func (b *RedisBridge) receiveLoop() {
	defer close(b.done)
	for msg := range b.sub.Channel() {
		userID, err := strconv.ParseInt(strings.TrimPrefix(msg.Channel, redisChannelPrefix), 10, 64)
		if err != nil {
			b.log.Warn("unparseable bridge channel", "channel", msg.Channel)
			continue
		}
		b.inbound(userID, []byte(msg.Payload))
	}
}

func (b *RedisBridge) Subscribe(ctx context.Context, userID int64) error {
	return b.sub.Subscribe(ctx, redisChannel(userID))
}

func (b *RedisBridge) Unsubscribe(ctx context.Context, userID int64) error {
	return b.sub.Unsubscribe(ctx, redisChannel(userID))
}

func (b *RedisBridge) Publish(ctx context.Context, userID int64, payload []byte) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.client.Publish(ctx, redisChannel(userID), payload).Err()
	})
	return err
}

func (b *RedisBridge) Close() error {
	if b.sub != nil {
		if err := b.sub.Close(); err != nil {
			return err
		}
		<-b.done
	}
	return b.client.Close()
}
