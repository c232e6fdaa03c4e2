package cmd

import (
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"gorm.io/gorm"

	"github.com/relaychat/relayd/config"
	"github.com/relaychat/relayd/internal/adapter/pubsub"
	"github.com/relaychat/relayd/internal/adapter/store"
	"github.com/relaychat/relayd/internal/domain/registry"
	"github.com/relaychat/relayd/internal/handler/tcp"
	"github.com/relaychat/relayd/internal/handler/ws"
	"github.com/relaychat/relayd/internal/service"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideDB,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),
		registry.Module,
		store.Module,
		// service before pubsub: the inbound callback must be bound before
		// the bridge consumer starts delivering.
		service.Module,
		pubsub.Module,
		tcp.Module,
		ws.Module,
	)
}

func ProvideLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func ProvideWatermillLogger(log *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(log)
}

func ProvideDB(cfg *config.Config) (*gorm.DB, error) {
	return store.Open(cfg.MySQL.DSN)
}
