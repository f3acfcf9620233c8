package controller

import (
	"go.uber.org/fx"

	controllermeta "animebingo.dev/backend-next/internal/controller/meta"
	controllerv1 "animebingo.dev/backend-next/internal/controller/v1"
)

func Module() fx.Option {
	return fx.Module("controller",
		// Controllers (v1)
		controllerv1.Module(),

		// Controllers (meta)
		controllermeta.Module(),
	)
}
