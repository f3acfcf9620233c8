package middlewares

import (
	"github.com/gofiber/fiber/v2"

	"animebingo.dev/backend-next/internal/pkg/bgerr"
	"animebingo.dev/backend-next/internal/util/rekuest"
)

const BodyLocalsKey = "body"

// InjectValidBody parses the request body into a T, validates it and stores it under BodyLocalsKey.
func InjectValidBody[T any]() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		dest := new(T)
		if err := ctx.BodyParser(dest); err != nil {
			return bgerr.ErrInvalidReq.Msg("invalid request: %s", err)
		}

		if err := rekuest.ValidateStruct(ctx, dest); err != nil {
			return err
		}

		ctx.Locals(BodyLocalsKey, dest)

		return ctx.Next()
	}
}

// Body returns the body stored by InjectValidBody.
func Body[T any](ctx *fiber.Ctx) *T {
	body, _ := ctx.Locals(BodyLocalsKey).(*T)
	return body
}
