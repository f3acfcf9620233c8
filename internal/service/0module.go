package service

import (
	"go.uber.org/fx"

	"animebingo.dev/backend-next/internal/repo"
)

func Module() fx.Option {
	return fx.Module("service",
		fx.Provide(
			provideLocker,
			func(r *repo.Profile) ProfileStore { return r },
			NewCard,
			NewHealth,
			NewProfile,
		),
		UpstreamModule(),
	)
}

// UpstreamModule provides the services that only depend on upstream.
func UpstreamModule() fx.Option {
	return fx.Module("service.upstream", fx.Provide(
		provideSources,
		NewCollection,
		NewPopularity,
	))
}
