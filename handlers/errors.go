// handlers/errors.go
package handlers

import (
	"errors"

	"clan-wager-system/observability"
	"clan-wager-system/services"

	"github.com/gofiber/fiber/v2"
)

var log = observability.NewLogger("http")

var kindStatus = map[services.ErrorKind]int{
	services.KindNotFound:          fiber.StatusNotFound,
	services.KindForbidden:         fiber.StatusForbidden,
	services.KindInvalidState:      fiber.StatusConflict,
	services.KindInsufficientFunds: fiber.StatusBadRequest,
	services.KindInvalidWinner:     fiber.StatusUnprocessableEntity,
	services.KindValidation:        fiber.StatusBadRequest,
}

// respondError maps a service error to its HTTP status. Internal errors are
// logged and their text withheld.
func respondError(c *fiber.Ctx, err error) error {
	kind := services.Kind(err)
	status, ok := kindStatus[kind]
	if !ok {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   services.KindInternal,
			"message": "internal server error",
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   kind,
		"message": err.Error(),
	})
}

// ErrorHandler renders errors that escape a handler, such as unknown routes,
// in the same shape as respondError.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"error":   fe.Message,
			"message": fe.Message,
		})
	}
	return respondError(c, err)
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   services.KindValidation,
		"message": "invalid JSON: " + err.Error(),
	})
}
