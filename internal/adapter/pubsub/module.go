package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/relaychat/relayd/config"
	"github.com/relaychat/relayd/internal/service"
)

// runner is the lifecycle surface shared by all bridge implementations.
type runner interface {
	Start(ctx context.Context) error
	Close() error
}

// NewBridge builds the bridge named by the config.
func NewBridge(cfg *config.Config, log *slog.Logger, wlog watermill.LoggerAdapter) (service.Bridge, error) {
	switch cfg.Bridge.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedis(log, client), nil
	case "amqp":
		b, err := NewAMQP(wlog, cfg.Bridge.AMQPURI)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "inproc":
		return NewInProc(wlog), nil
	default:
		return nil, fmt.Errorf("unknown bridge driver %q", cfg.Bridge.Driver)
	}
}

var Module = fx.Module("pubsub",
	fx.Provide(NewBridge),
	fx.Invoke(func(lc fx.Lifecycle, b service.Bridge) {
		r, ok := b.(runner)
		if !ok {
			return
		}
		lc.Append(fx.Hook{
			OnStart: r.Start,
			OnStop: func(ctx context.Context) error {
				return r.Close()
			},
		})
	}),
)
