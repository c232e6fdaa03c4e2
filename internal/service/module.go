package service

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("service",
	fx.Provide(NewRouter),
	fx.Invoke(func(lc fx.Lifecycle, r *Router, b Bridge) {
		lc.Append(fx.Hook{
			// The inbound callback is bound before the bridge consumer
			// starts (bridge hooks are appended after this module's), and
			// presence recovery runs before any listener accepts logins.
			OnStart: func(ctx context.Context) error {
				b.Bind(r.HandleInbound)
				return r.Recover(ctx)
			},
			// Operator shutdown: once the listeners are gone, no process
			// holds live connections, so persisted presence is reset.
			OnStop: func(ctx context.Context) error {
				return r.Recover(ctx)
			},
		})
	}),
)
