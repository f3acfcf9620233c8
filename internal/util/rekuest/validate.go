package rekuest

import (
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"animebingo.dev/backend-next/internal/pkg/bgerr"
	"animebingo.dev/backend-next/internal/util"
)

var (
	Validate = util.NewValidator()

	translator ut.Translator
)

func init() {
	enLocale := en.New()
	translator, _ = ut.New(enLocale, enLocale).GetTranslator("en")

	if err := enTranslations.RegisterDefaultTranslations(Validate, translator); err != nil {
		log.Warn().Err(err).Str("locale", "en").Msg("could not register translation")
	}

	custom := map[string]string{
		"caseinsensitiveoneof": "{0} must be one of [{1}]",
		"username":             "{0} must only contain letters, digits, underscores and dashes",
		"refreshmode":          "{0} must be either merge or replace",
	}
	for tag, text := range custom {
		tag, text := tag, text
		err := Validate.RegisterTranslation(tag, translator, func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		}, func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field(), fe.Param())
			return t
		})
		if err != nil {
			log.Warn().Err(err).Str("tag", tag).Msg("could not register translation")
		}
	}
}

type ErrorResponse struct {
	Field     string `json:"field,omitempty"`
	Violation string `json:"violation"`
	Message   string `json:"message"`
}

func translate(ve validator.ValidationErrors) []*ErrorResponse {
	trans := make([]*ErrorResponse, 0, len(ve))
	for _, fe := range ve {
		trans = append(trans, &ErrorResponse{
			Field:     fe.Namespace(),
			Violation: fe.Tag(),
			Message:   strings.TrimSpace(fe.Translate(translator)),
		})
	}
	return trans
}

func violations(err error) error {
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return bgerr.ErrInvalidReq.Msg("invalid request: %s", err)
	}
	return bgerr.NewInvalidViolations(translate(errs))
}

// ValidBody will get the body from *fiber.Ctx using fiber#BodyParser(),
// and validate it using the validator singleton. dest shall always be a pointer.
func ValidBody(ctx *fiber.Ctx, dest any) error {
	if err := ctx.BodyParser(dest); err != nil {
		return bgerr.ErrInvalidReq.Msg("invalid request: %s", err)
	}

	return ValidateStruct(ctx, dest)
}

func ValidateStruct(_ *fiber.Ctx, s any) error {
	return violations(Validate.Struct(s))
}

func ValidVar(_ *fiber.Ctx, field any, tag string) error {
	return violations(Validate.Var(field, tag))
}

type usernameRequest struct {
	Username string `validate:"required,max=64,username"`
}

func ValidUsername(ctx *fiber.Ctx, username string) error {
	return ValidateStruct(ctx, usernameRequest{Username: username})
}
