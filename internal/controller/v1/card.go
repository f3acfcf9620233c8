package v1

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"

	"animebingo.dev/backend-next/internal/model"
	"animebingo.dev/backend-next/internal/pkg/bearer"
	"animebingo.dev/backend-next/internal/pkg/bgerr"
	"animebingo.dev/backend-next/internal/pkg/cachectrl"
	"animebingo.dev/backend-next/internal/pkg/middlewares"
	"animebingo.dev/backend-next/internal/server/svr"
	"animebingo.dev/backend-next/internal/service"
	"animebingo.dev/backend-next/internal/util/rekuest"
)

type Card struct {
	fx.In

	CardService    *service.Card
	ProfileService *service.Profile
}

type CardSearchRequest struct {
	Mode string `json:"mode" query:"mode" validate:"omitempty,refreshmode"`
}

type CellRequest struct {
	Watched *bool `json:"watched" validate:"required"`
}

func RegisterCard(v1 *svr.V1, c Card) {
	users := v1.Group("/users/:username", validUsername)

	users.Post("/card", c.SearchCard)
	users.Get("/card", c.GetCard)
	users.Put("/cells/:year/:rank", middlewares.InjectValidBody[CellRequest](), c.SetCell)
	users.Post("/cells/:year/:rank/toggle", c.ToggleCell)
	users.Patch("/profile", middlewares.InjectValidBody[model.ProfilePatch](), c.PatchProfile)
	users.Get("/snapshot", c.GetSnapshot)
}

func validUsername(ctx *fiber.Ctx) error {
	if err := rekuest.ValidUsername(ctx, strings.TrimSpace(ctx.Params("username"))); err != nil {
		return err
	}
	return ctx.Next()
}

func cell(ctx *fiber.Ctx) (year, rank int, err error) {
	year, err = ctx.ParamsInt("year")
	if err != nil {
		return 0, 0, bgerr.ErrInvalidReq.Msg("invalid or missing year")
	}
	rank, err = ctx.ParamsInt("rank")
	if err != nil {
		return 0, 0, bgerr.ErrInvalidReq.Msg("invalid or missing rank")
	}
	return year, rank, nil
}

// SearchCard fetches the user's collection and the popularity matrix, aggregates them and
// reconciles the stored watch state. A credential in the Authorization header is forwarded upstream.
func (c *Card) SearchCard(ctx *fiber.Ctx) error {
	var request CardSearchRequest
	if err := ctx.QueryParser(&request); err != nil {
		return bgerr.ErrInvalidReq.Msg("invalid request: %s", err)
	}
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&request); err != nil {
			return bgerr.ErrInvalidReq.Msg("invalid request: %s", err)
		}
	}
	if err := rekuest.ValidateStruct(ctx, &request); err != nil {
		return err
	}

	card, err := c.CardService.Search(ctx.UserContext(), service.CardSearch{
		UserID:     ctx.Params("username"),
		Credential: bearer.Extract(ctx),
		Mode:       model.RefreshMode(request.Mode),
	})
	if err != nil {
		return err
	}

	cachectrl.OptOut(ctx)
	return ctx.JSON(card)
}

func (c *Card) GetCard(ctx *fiber.Ctx) error {
	card, err := c.CardService.Get(ctx.UserContext(), ctx.Params("username"))
	if err != nil {
		return err
	}

	cachectrl.OptOut(ctx)
	return ctx.JSON(card)
}

func (c *Card) SetCell(ctx *fiber.Ctx) error {
	year, rank, err := cell(ctx)
	if err != nil {
		return err
	}
	request := middlewares.Body[CellRequest](ctx)

	profile, err := c.CardService.SetCell(ctx.UserContext(), ctx.Params("username"), year, rank, *request.Watched)
	if err != nil {
		return err
	}

	return ctx.JSON(profile)
}

func (c *Card) ToggleCell(ctx *fiber.Ctx) error {
	year, rank, err := cell(ctx)
	if err != nil {
		return err
	}

	profile, err := c.CardService.ToggleCell(ctx.UserContext(), ctx.Params("username"), year, rank)
	if err != nil {
		return err
	}

	return ctx.JSON(profile)
}

func (c *Card) PatchProfile(ctx *fiber.Ctx) error {
	patch := middlewares.Body[model.ProfilePatch](ctx)

	profile, err := c.ProfileService.Patch(ctx.UserContext(), ctx.Params("username"), patch)
	if err != nil {
		return err
	}

	return ctx.JSON(profile)
}

func (c *Card) GetSnapshot(ctx *fiber.Ctx) error {
	snapshot, err := c.CardService.Snapshot(ctx.UserContext(), ctx.Params("username"))
	if err != nil {
		return err
	}

	cachectrl.OptOut(ctx)
	return ctx.JSON(snapshot)
}
