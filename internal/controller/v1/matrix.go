package v1

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"

	"animebingo.dev/backend-next/internal/constant"
	"animebingo.dev/backend-next/internal/pkg/cachectrl"
	"animebingo.dev/backend-next/internal/server/svr"
	"animebingo.dev/backend-next/internal/service"
)

type Matrix struct {
	fx.In

	CardService       *service.Card
	PopularityService *service.Popularity
}

func RegisterMatrix(v1 *svr.V1, c Matrix) {
	v1.Get("/matrix", c.GetMatrix)
}

// GetMatrix serves the anonymous popularity matrix of the current window. The digest doubles
// as the ETag so clients can revalidate cheaply.
func (c *Matrix) GetMatrix(ctx *fiber.Ctx) error {
	matrix, err := c.PopularityService.GetCurrentMatrix(ctx.UserContext(), c.CardService.Window())
	if err != nil {
		return err
	}

	cachectrl.OptInCustom(ctx, time.Now(), constant.MatrixCacheMaxAge)
	if cachectrl.ETag(ctx, matrix.Digest) {
		return ctx.SendStatus(fiber.StatusNotModified)
	}

	return ctx.JSON(matrix)
}
