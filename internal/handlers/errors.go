package handlers

import (
	"errors"

	"spamguard/server/internal/apperr"
	"spamguard/server/internal/logging"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders any error returned by a handler or middleware as the
// response envelope. Domain errors keep their kind's status and message,
// *fiber.Error keeps its code, everything else is a 500.
func ErrorHandler(logger logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Internal server error"

		var ae *apperr.Error
		var fe *fiber.Error
		switch {
		case errors.As(err, &ae):
			status = ae.Kind.Status()
			message = ae.Message
		case errors.As(err, &fe):
			status = fe.Code
			message = fe.Message
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error(c.UserContext(), "request failed",
				"method", c.Method(),
				"path", c.Path(),
				"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
				"error", err,
			)
		}

		return respond(c, status, nil, message)
	}
}
