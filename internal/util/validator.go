package util

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/model"
)

// usernameRegex matches upstream usernames and numeric user ids.
var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterValidation("caseinsensitiveoneof", caseInsensitiveOneOf)
	validate.RegisterValidation("username", username)
	validate.RegisterValidation("refreshmode", refreshMode)
	validate.RegisterCustomTypeFunc(nullIntValuer, null.Int{})
	validate.RegisterCustomTypeFunc(nullStringValuer, null.String{})

	return validate
}

func caseInsensitiveOneOf(fl validator.FieldLevel) bool {
	val := strings.ToLower(fl.Field().String())
	candidates := strings.Split(strings.ToLower(fl.Param()), " ")
	for _, v := range candidates {
		if val == v {
			return true
		}
	}
	return false
}

func username(fl validator.FieldLevel) bool {
	return usernameRegex.MatchString(fl.Field().String())
}

func refreshMode(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	return val == "" || model.RefreshMode(val).Valid()
}

func nullIntValuer(field reflect.Value) interface{} {
	if valuer, ok := field.Interface().(null.Int); ok {
		return valuer.Int64
	}

	return nil
}

func nullStringValuer(field reflect.Value) interface{} {
	if valuer, ok := field.Interface().(null.String); ok {
		return valuer.String
	}

	return nil
}
