package ws

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("ws",
	fx.Provide(NewServer),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error { return s.Start() },
			OnStop:  s.Stop,
		})
	}),
)
