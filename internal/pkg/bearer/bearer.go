// Package bearer extracts the opaque upstream credential a client forwards with its request.
package bearer

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/constant"
)

// Extract returns the credential from the Authorization header (Bearer realm) or, failing that,
// from the upstream token header. The value is never inspected.
func Extract(ctx *fiber.Ctx) null.String {
	authorization := strings.TrimSpace(ctx.Get(fiber.HeaderAuthorization))
	if len(authorization) > len(constant.BearerAuthorizationRealm) &&
		strings.EqualFold(authorization[:len(constant.BearerAuthorizationRealm)], constant.BearerAuthorizationRealm) {
		token := strings.TrimSpace(authorization[len(constant.BearerAuthorizationRealm):])
		if token != "" {
			return null.StringFrom(token)
		}
	}

	if token := strings.TrimSpace(ctx.Get(constant.UpstreamTokenHeader)); token != "" {
		return null.StringFrom(token)
	}

	return null.String{}
}

// Or returns credential when it is set and fallback otherwise.
func Or(credential null.String, fallback string) null.String {
	if credential.Valid && credential.String != "" {
		return credential
	}
	if fallback == "" {
		return null.String{}
	}
	return null.StringFrom(fallback)
}
