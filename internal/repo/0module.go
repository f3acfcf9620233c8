package repo

import (
	"context"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("repo",
		fx.Provide(
			NewProfile,
		),
		fx.Invoke(func(lc fx.Lifecycle, profile *Profile) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return profile.EnsureSchema(ctx)
				},
			})
		}),
	)
}
