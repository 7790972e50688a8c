// Package httpapi exposes the pipeline controller, archive service, and
// supporting components over HTTP, grounded on wh1plash-rag/app/server
// and app/api (fiber.Config.ErrorHandler, Error/ValidationError shapes),
// generalized from that package's ad-hoc per-handler error values to a
// single apperrors.Error-aware ErrorHandler.
package httpapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"meetingpipeline/internal/apperrors"
)

// Error is the JSON error envelope, matching app/api/errors.go's Error
// shape so existing API consumers see the same {code, error} contract.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e Error) Error() string { return e.Message }

func NewError(code int, msg string) Error {
	return Error{Code: code, Message: msg}
}

func ErrBadRequest(msg string) Error {
	if msg == "" {
		msg = "invalid request"
	}
	return Error{Code: fiber.StatusBadRequest, Message: msg}
}

// ValidationError reports per-field validator failures, matching
// app/api/errors.go's ValidationError.
type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string { return "validation failed" }

func NewValidationError(fieldErrors map[string]string) ValidationError {
	return ValidationError{Status: fiber.StatusUnprocessableEntity, Errors: fieldErrors}
}

// ErrorHandler is registered on the fiber.Config and is the single place
// that turns a handler's returned error into an HTTP response: it knows
// about httpapi.Error, httpapi.ValidationError, *apperrors.Error (via its
// HTTPStatus mapping), and falls back to fiber's own *fiber.Error.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}

	var valErr ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		logRequestFailure(appErr.HTTPStatus(), appErr.Error())
		return c.Status(appErr.HTTPStatus()).JSON(Error{Code: appErr.HTTPStatus(), Message: appErr.Error()})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		logRequestFailure(fiberErr.Code, fiberErr.Message)
		return c.Status(fiberErr.Code).JSON(Error{Code: fiberErr.Code, Message: fiberErr.Message})
	}

	logRequestFailure(fiber.StatusInternalServerError, err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(Error{Code: fiber.StatusInternalServerError, Message: err.Error()})
}

func logRequestFailure(code int, message string) {
	fmt.Printf("%s request failed with code %d and message: %s\n", time.Now().Format(time.RFC3339), code, message)
}
