package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// UnknownErrorMessage is returned for failures without a client message.
const UnknownErrorMessage = "Something went wrong"

// ErrorHandler renders errors returned by handlers as {"message": ...} JSON.
// Errors that are not *fiber.Error, including recovered panics, are logged
// and rendered as a 400 with a generic message like every other failure.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusBadRequest
		message := UnknownErrorMessage

		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			code = ferr.Code
			message = ferr.Message
		} else if logger != nil {
			logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
		}

		return c.Status(code).JSON(fiber.Map{"message": message})
	}
}
