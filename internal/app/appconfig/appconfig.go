package appconfig

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"animebingo.dev/backend-next/internal/app/appcontext"
)

const envPrefix = "bingo"

func Parse(ctx appcontext.Ctx) (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	var config ConfigSpec
	err = envconfig.Process(envPrefix, &config)
	if err != nil {
		_ = envconfig.Usage(envPrefix, &config)
		return nil, fmt.Errorf("failed to parse configuration: %w. All variables are documented on appconfig.ConfigSpec", err)
	}

	if !config.YearFailurePolicy.Valid() {
		return nil, fmt.Errorf("failed to parse configuration: invalid year failure policy %q", config.YearFailurePolicy)
	}

	return &Config{
		ConfigSpec: config,
		AppContext: ctx,
	}, nil
}
