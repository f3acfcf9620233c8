package middlewares

import (
	"github.com/getsentry/sentry-go"
	"github.com/gofiber/contrib/fibersentry"
	"github.com/gofiber/fiber/v2"

	"animebingo.dev/backend-next/internal/constant"
)

// EnrichSentry tags the request hub with the request id and opens a transaction span,
// unless the request is a probe marked with the slim header.
func EnrichSentry() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(constant.SlimHeaderKey) != "" {
			return c.Next()
		}

		hub := fibersentry.GetHubFromContext(c)
		if hub == nil {
			return c.Next()
		}
		if id, ok := c.Locals(constant.ContextKeyRequestID).(string); ok {
			hub.Scope().SetTag("request_id", id)
		}

		span := sentry.StartSpan(c.UserContext(), "http.server",
			sentry.WithTransactionName(c.Method()+" "+c.Route().Path),
		)
		defer span.Finish()
		c.SetUserContext(span.Context())

		return c.Next()
	}
}
