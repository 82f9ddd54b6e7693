package response

import (
	"github.com/gofiber/fiber/v2"
)

// Body is the standard envelope: {success, message?, data?} on success and
// {success: false, error} on failure. Every core operation surfaces failures
// as values, so handlers only ever emit these two shapes.
type Body struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends 200 with the standard success envelope.
func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(Body{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SuccessCreated sends 201 with the standard success envelope.
func SuccessCreated(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Body{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends the standard error envelope with the given status code.
func Error(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(Body{
		Success: false,
		Error:   message,
	})
}
