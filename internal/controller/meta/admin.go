package meta

import (
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"go.uber.org/fx"
	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/model/cache"
	"animebingo.dev/backend-next/internal/pkg/bgerr"
	"animebingo.dev/backend-next/internal/server/svr"
	"animebingo.dev/backend-next/internal/service"
	"animebingo.dev/backend-next/internal/util/rekuest"
)

type Admin struct {
	fx.In

	CardService       *service.Card
	PopularityService *service.Popularity
}

type PurgeCacheRequest struct {
	Name string      `json:"name" validate:"required"`
	Key  null.String `json:"key"`
}

func RegisterAdmin(admin *svr.Admin, c Admin) {
	admin.Get("/caches", c.ListCaches)
	admin.Post("/purge", c.PurgeCache)

	admin.Post("/refresh/matrix", c.RefreshMatrix)
}

func (c *Admin) ListCaches(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"caches": cache.Names(),
	})
}

func (c *Admin) PurgeCache(ctx *fiber.Ctx) error {
	var request PurgeCacheRequest
	if err := rekuest.ValidBody(ctx, &request); err != nil {
		return err
	}
	if !lo.Contains(cache.Names(), request.Name) {
		return bgerr.ErrInvalidReq.Msg("unknown cache %q", request.Name)
	}

	if err := cache.Delete(request.Name, request.Key); err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// RefreshMatrix rebuilds the matrix of the current window and replaces the cached copy.
func (c *Admin) RefreshMatrix(ctx *fiber.Ctx) error {
	window := c.CardService.Window()
	matrix, err := c.PopularityService.RefreshMatrix(ctx.UserContext(), window)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"window": matrix.Window,
		"digest": matrix.Digest,
		"cells":  matrix.Cells(),
	})
}
