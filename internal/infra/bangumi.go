package infra

import (
	"github.com/rs/zerolog/log"

	"animebingo.dev/backend-next/internal/app/appconfig"
	"animebingo.dev/backend-next/internal/pkg/bangumi"
)

func Bangumi(conf *appconfig.Config) *bangumi.Client {
	if conf.BangumiAccessToken == "" {
		log.Info().
			Str("evt.name", "infra.bangumi.anonymous").
			Msg("no default access token configured; requests without a credential are anonymous")
	}

	return bangumi.New(bangumi.Config{
		BaseURL:       conf.BangumiBaseURL,
		UserAgent:     conf.BangumiUserAgent,
		Timeout:       conf.BangumiTimeout,
		RateLimit:     conf.BangumiRateLimit,
		Burst:         conf.BangumiBurst,
		RetryAttempts: conf.BangumiRetryAttempts,
		MetaTags:      conf.BangumiMetaTags,
	})
}
