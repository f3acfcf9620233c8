package cli

import (
	"context"

	"go.uber.org/fx"

	"animebingo.dev/backend-next/internal/app"
	"animebingo.dev/backend-next/internal/app/appcontext"
)

// Start builds the CLI graph and starts it so module can populate its dependencies.
func Start(module fx.Option) error {
	return app.New(appcontext.Declare(appcontext.EnvCLI), module).Start(context.Background())
}
