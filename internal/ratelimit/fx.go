package ratelimit

import "go.uber.org/fx"

var Module = fx.Module("ratelimit",
	fx.Provide(
		NewRedisClient,
		NewLocker,
		NewWindow,
		NewEdgeLimiter,
		NewJanitor,
	),
	fx.Invoke(RegisterJanitor),
)
