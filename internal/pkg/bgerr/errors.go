package bgerr

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

const (
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInternalError       = "INTERNAL_ERROR"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeSuperseded          = "SUPERSEDED"
	CodeUnauthorized        = "UNAUTHORIZED"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = New(fiber.StatusNotFound, CodeNotFound, "resource not found with given parameters")

	// ErrInvalidReq is returned when a request is invalid.
	ErrInvalidReq = New(fiber.StatusBadRequest, CodeInvalidRequest, "invalid request: some or all request parameters are invalid")

	// ErrInternalError is returned when an internal error occurs.
	ErrInternalError = New(fiber.StatusInternalServerError, CodeInternalError, "internal server error occurred")

	// ErrUpstreamUnavailable is returned when the upstream could not provide the data for a card.
	// The card is left untouched and the request can be retried.
	ErrUpstreamUnavailable = New(fiber.StatusBadGateway, CodeUpstreamUnavailable, "upstream data is unavailable, please retry later")

	// ErrSuperseded is returned when a newer request for the same user replaced this one.
	ErrSuperseded = New(fiber.StatusConflict, CodeSuperseded, "request superseded by a newer one for the same user")

	// ErrUnauthorized is returned when the admin key is missing or wrong.
	ErrUnauthorized = New(fiber.StatusUnauthorized, CodeUnauthorized, "unauthorized")
)

type Extras map[string]interface{}

type BingoError struct {
	StatusCode int    `example:"400"`
	ErrorCode  string `example:"INVALID_REQUEST"`
	Message    string `example:"invalid request: some or all request parameters are invalid"`
	Extras     *Extras
}

func New(statusCode int, errorCode string, message string) *BingoError {
	return &BingoError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

func (e BingoError) Msg(format string, parts ...interface{}) *BingoError {
	e.Message = fmt.Sprintf(format, parts...)
	return &e
}

func (e BingoError) WithExtras(extras Extras) *BingoError {
	e.Extras = &extras
	return &e
}

func NewInvalidViolations(violations interface{}) *BingoError {
	// copy ErrInvalidReq as e
	e := *ErrInvalidReq
	e.Extras = &Extras{
		"violations": violations,
	}
	return &e
}

func (e *BingoError) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}

// Is matches any BingoError carrying the same error code, so errors.Is(err, ErrNotFound)
// holds for messages derived with Msg.
func (e *BingoError) Is(target error) bool {
	t, ok := target.(*BingoError)
	if !ok {
		return false
	}
	return e.ErrorCode == t.ErrorCode
}
