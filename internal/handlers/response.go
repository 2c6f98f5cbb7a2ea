package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// APIResponse is the envelope every endpoint answers with
type APIResponse struct {
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
	Success    bool        `json:"success"`
}

func respond(c *fiber.Ctx, status int, data interface{}, message string) error {
	return c.Status(status).JSON(APIResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < fiber.StatusBadRequest,
	})
}
