package app

import (
	"time"

	"go.uber.org/fx"

	"animebingo.dev/backend-next/internal/app/appconfig"
	"animebingo.dev/backend-next/internal/app/appcontext"
	"animebingo.dev/backend-next/internal/controller"
	"animebingo.dev/backend-next/internal/infra"
	"animebingo.dev/backend-next/internal/model/cache"
	"animebingo.dev/backend-next/internal/pkg/logger"
	"animebingo.dev/backend-next/internal/repo"
	"animebingo.dev/backend-next/internal/server"
	"animebingo.dev/backend-next/internal/service"
	"animebingo.dev/backend-next/internal/workers/matrixwkr"
)

func Options(ctx appcontext.Ctx, additionalOpts ...fx.Option) []fx.Option {
	conf, err := appconfig.Parse(ctx)
	if err != nil {
		panic(err)
	}

	// logger and configuration are the only two things that are not in the fx graph
	// because some other packages need them to be initialized before fx starts
	logger.Configure(conf)

	var baseOpts []fx.Option
	switch ctx.Env {
	case appcontext.EnvCLI:
		baseOpts = cliOptions(conf)
	default:
		baseOpts = serverOptions(conf)
	}

	return append(baseOpts, additionalOpts...)
}

func serverOptions(conf *appconfig.Config) []fx.Option {
	return []fx.Option{
		// fx meta
		fx.WithLogger(logger.Fx),

		// Misc
		fx.Supply(conf),

		// Infrastructures
		infra.Module(),

		// Servers
		server.Module(),

		// Repositories
		repo.Module(),

		// Services
		service.Module(),

		// Global Singleton Inits: Keep those before controllers to ensure they are initialized
		// before controllers are registered as controllers are also fx#Invoke functions which
		// are called in the order of their registration.
		fx.Invoke(infra.SentryInit),
		fx.Invoke(cache.Initialize),

		// Controllers
		controller.Module(),

		// Workers
		fx.Invoke(matrixwkr.Start),

		// fx Extra Options
		fx.StartTimeout(1 * time.Second),
		// StopTimeout is not typically needed, since we're using fiber's Shutdown(),
		// in which fiber has its own IdleTimeout for controlling the shutdown timeout.
		// It acts as a countermeasure in case the fiber app is not properly shutting down.
		fx.StopTimeout(5 * time.Minute),
	}
}

// cliOptions wires only the upstream side: one-shot commands run without Postgres or Redis.
func cliOptions(conf *appconfig.Config) []fx.Option {
	return []fx.Option{
		fx.WithLogger(logger.Fx),
		fx.Supply(conf),

		infra.UpstreamModule(),
		service.UpstreamModule(),
	}
}

func New(ctx appcontext.Ctx, additionalOpts ...fx.Option) *fx.App {
	return fx.New(Options(ctx, additionalOpts...)...)
}
