package infra

import (
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"

	"animebingo.dev/backend-next/internal/app/appconfig"
	"animebingo.dev/backend-next/internal/pkg/bininfo"
)

// SentryInit initializes sentry with side-effect
func SentryInit(conf *appconfig.Config) error {
	if conf.SentryDSN == "" {
		log.Warn().Msg("Sentry is disabled due to missing DSN.")
		return nil
	} else {
		log.Info().Msg("Initializing Sentry...")
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              conf.SentryDSN,
		Release:          "bingo-backend@" + bininfo.Version,
		Debug:            conf.DevMode,
		AttachStacktrace: true,
		EnableTracing:    true,
		TracesSampleRate: 0.01,
	})
}
