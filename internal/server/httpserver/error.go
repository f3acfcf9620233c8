package httpserver

import (
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/contrib/fibersentry"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"animebingo.dev/backend-next/internal/pkg/bgerr"
	"animebingo.dev/backend-next/internal/pkg/fetcherr"
)

func handleCustomError(ctx *fiber.Ctx, e *bgerr.BingoError) error {
	log.Warn().
		Err(e).
		Str("method", ctx.Method()).
		Str("path", ctx.Path()).
		Msg(e.Message)

	body := fiber.Map{
		"code":    e.ErrorCode,
		"message": e.Message,
	}

	if e.Extras != nil && len(*e.Extras) > 0 {
		for k, v := range *e.Extras {
			body[k] = v
		}
	}

	return ctx.Status(e.StatusCode).JSON(body)
}

// upstreamError describes a failed upstream fetch without leaking the upstream payload.
func upstreamError(err error) *bgerr.BingoError {
	extras := bgerr.Extras{"retryable": true}

	var ff *fetcherr.FetchFailure
	if errors.As(err, &ff) {
		extras["op"] = ff.Op
		switch {
		case ff.Year != 0:
			extras["year"] = ff.Year
		case ff.Op == fetcherr.OpCollectionPage:
			extras["page"] = ff.Page
			extras["offset"] = ff.Offset
		}
	}

	return bgerr.ErrUpstreamUnavailable.WithExtras(extras)
}

func ErrorHandler(ctx *fiber.Ctx, err error) error {
	var be *bgerr.BingoError
	if errors.As(err, &be) {
		return handleCustomError(ctx, be)
	}

	if fetcherr.Retryable(err) {
		log.Warn().
			Err(err).
			Str("method", ctx.Method()).
			Str("path", ctx.Path()).
			Msg("upstream fetch failed")
		return handleCustomError(ctx, upstreamError(err))
	}

	re := *bgerr.ErrInternalError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		re.StatusCode = fe.Code
		re.ErrorCode = "UNKNOWN_ERROR"
		re.Message = fe.Message
		// routing misses and the like are not worth a report
		if fe.Code < fiber.StatusInternalServerError {
			return handleCustomError(ctx, &re)
		}
	}

	log.Error().
		Stack().
		Err(err).
		Str("method", ctx.Method()).
		Str("path", ctx.Path()).
		Int("status", re.StatusCode).
		Msg("Internal Server Error")

	if hub := fibersentry.GetHubFromContext(ctx); hub != nil {
		hub.Scope().SetTag("status", strconv.Itoa(re.StatusCode))
		if u := ctx.Params("username"); u != "" {
			hub.Scope().SetUser(sentry.User{
				Username: u,
			})
		}
		hub.CaptureException(err)
	}

	return handleCustomError(ctx, &re)
}
