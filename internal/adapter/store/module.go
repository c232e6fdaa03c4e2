package store

import (
	"go.uber.org/fx"

	"github.com/relaychat/relayd/internal/service"
)

var Module = fx.Module("store",
	fx.Provide(
		fx.Annotate(New, fx.As(new(service.Store))),
		fx.Annotate(NewOfflineQueue, fx.As(new(service.OfflineQueue))),
	),
)
