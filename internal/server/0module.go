package server

import (
	"go.uber.org/fx"

	"animebingo.dev/backend-next/internal/server/httpserver"
	"animebingo.dev/backend-next/internal/server/svr"
)

func Module() fx.Option {
	return fx.Module("server",
		fx.Provide(httpserver.Create),
		fx.Provide(svr.CreateEndpointGroups))
}
