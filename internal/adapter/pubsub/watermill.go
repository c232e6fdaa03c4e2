package pubsub

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/relaychat/relayd/internal/service"
)

func watermillTopic(userID int64) string {
	return "user." + strconv.FormatInt(userID, 10)
}

// WatermillBridge adapts any watermill publisher/subscriber pair to the
// bridge contract. A per-user subscription is one watermill subscription on
// the user's topic, torn down by cancelling its context.
type WatermillBridge struct {
	log     watermill.LoggerAdapter
	pub     message.Publisher
	sub     message.Subscriber
	inbound service.InboundFunc

	mu      sync.Mutex
	cancels map[int64]context.CancelFunc
	root    context.Context
	stop    context.CancelFunc
}

func NewWatermill(log watermill.LoggerAdapter, pub message.Publisher, sub message.Subscriber) *WatermillBridge {
	root, stop := context.WithCancel(context.Background())
	return &WatermillBridge{
		log:     log,
		pub:     pub,
		sub:     sub,
		cancels: make(map[int64]context.CancelFunc),
		root:    root,
		stop:    stop,
	}
}

// NewInProc builds a bridge over watermill's in-process pub/sub. Useful for
// single-node deployments and tests: same semantics, no broker.
func NewInProc(log watermill.LoggerAdapter) *WatermillBridge {
	ch := gochannel.NewGoChannel(gochannel.Config{}, log)
	return NewWatermill(log, ch, ch)
}

// NewAMQP builds a bridge over a RabbitMQ topic exchange.
func NewAMQP(log watermill.LoggerAdapter, uri string) (*WatermillBridge, error) {
	cfg := amqp.NewDurablePubSubConfig(uri, amqp.GenerateQueueNameTopicNameWithSuffix("relayd"))
	pub, err := amqp.NewPublisher(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher: %w", err)
	}
	sub, err := amqp.NewSubscriber(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("amqp subscriber: %w", err)
	}
	return NewWatermill(log, pub, sub), nil
}

func (b *WatermillBridge) Bind(fn service.InboundFunc) {
	b.inbound = fn
}

func (b *WatermillBridge) Start(ctx context.Context) error {
	if b.inbound == nil {
		return fmt.Errorf("watermill bridge: no inbound callback bound")
	}
	return nil
}

func (b *WatermillBridge) Subscribe(ctx context.Context, userID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.cancels[userID]; ok {
		return nil
	}
	// Subscriptions outlive the request that created them; they end on
	// Unsubscribe or bridge shutdown, not when the login handler returns.
	subCtx, cancel := context.WithCancel(b.root)
	msgs, err := b.sub.Subscribe(subCtx, watermillTopic(userID))
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe user %d: %w", userID, err)
	}
	b.cancels[userID] = cancel
	go b.consume(userID, msgs)
	return nil
}

func (b *WatermillBridge) consume(userID int64, msgs <-chan *message.Message) {
	for msg := range msgs {
		b.inbound(userID, msg.Payload)
		msg.Ack()
	}
}

func (b *WatermillBridge) Unsubscribe(ctx context.Context, userID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cancel, ok := b.cancels[userID]; ok {
		cancel()
		delete(b.cancels, userID)
	}
	return nil
}

func (b *WatermillBridge) Publish(ctx context.Context, userID int64, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return b.pub.Publish(watermillTopic(userID), msg)
}

func (b *WatermillBridge) Close() error {
	b.stop()
	b.mu.Lock()
	b.cancels = make(map[int64]context.CancelFunc)
	b.mu.Unlock()
	if err := b.pub.Close(); err != nil {
		return err
	}
	return b.sub.Close()
}
