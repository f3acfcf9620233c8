package app

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"animebingo.dev/backend-next/cmd/app/cli/card"
	"animebingo.dev/backend-next/cmd/app/server"
	"animebingo.dev/backend-next/internal/pkg/bininfo"
)

func Run() {
	app := &cli.App{
		Name:        "bingo",
		Description: "The Anime Bingo Card backend. Built with Go, fiber, bun and go.uber.org/fx. Aggregates Bangumi collections against yearly popularity rankings.",
		Version:     bininfo.Version,
		Commands: []*cli.Command{
			server.Command(),
			card.Command(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("failed to run app")
	}
}
