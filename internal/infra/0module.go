package infra

import "go.uber.org/fx"

func Module() fx.Option {
	return fx.Module("infra",
		fx.Provide(
			Redis,
			RedSync,
			Locker,
			Postgres,
		),
		UpstreamModule(),
	)
}

// UpstreamModule provides only what talking to upstream needs, for commands that run without
// the database or redis.
func UpstreamModule() fx.Option {
	return fx.Module("infra.upstream", fx.Provide(Bangumi))
}
