// Package response defines the envelope every management API endpoint
// returns.
package response

import (
	"github.com/gofiber/fiber/v2"
)

// Response is the uniform API envelope.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

const (
	CodeSuccess     = 0
	CodeError       = -1
	CodeNotFound    = 404
	CodeServerError = 500
)

// Success writes a success envelope with data.
func Success(c *fiber.Ctx, data any) error {
	return c.JSON(Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage writes a success envelope with an explicit message.
func SuccessWithMessage(c *fiber.Ctx, message string, data any) error {
	return c.JSON(Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// Error writes a generic error envelope.
func Error(c *fiber.Ctx, message string) error {
	return c.JSON(Response{
		Code:    CodeError,
		Message: message,
	})
}

// NotFound writes a not-found envelope.
func NotFound(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "not found"
	}
	return c.Status(fiber.StatusNotFound).JSON(Response{
		Code:    CodeNotFound,
		Message: message,
	})
}

// ServerError writes a server-error envelope.
func ServerError(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "server error"
	}
	return c.Status(fiber.StatusInternalServerError).JSON(Response{
		Code:    CodeServerError,
		Message: message,
	})
}
