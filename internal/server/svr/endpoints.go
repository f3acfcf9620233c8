package svr

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"animebingo.dev/backend-next/internal/app/appconfig"
	"animebingo.dev/backend-next/internal/constant"
	"animebingo.dev/backend-next/internal/pkg/bgerr"
)

type V1 struct {
	fiber.Router
}

type Meta struct {
	fiber.Router
}

type Admin struct {
	fiber.Router
}

func CreateEndpointGroups(app *fiber.App, conf *appconfig.Config) (*V1, *Meta, *Admin) {
	v1 := app.Group("/api/v1")
	meta := app.Group("/api/_")
	admin := meta.Group("/admin", RequireAdminKey(conf.AdminKey))

	return &V1{Router: v1}, &Meta{Router: meta}, &Admin{Router: admin}
}

// RequireAdminKey rejects requests whose admin key header does not match key. An empty key
// disables the admin API altogether.
func RequireAdminKey(key string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		given := ctx.Get(constant.AdminKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
			return bgerr.ErrUnauthorized
		}
		return ctx.Next()
	}
}
