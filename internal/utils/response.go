package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope used for error payloads and the small
// operational endpoints (health). Run endpoints return their resources
// directly and do not wrap them.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}

// SendSuccess writes a 200 envelope with the given message and data.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus writes a success envelope using the provided HTTP
// status code. A zero status falls back to 200 and an empty message to
// "success".
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}

	return send(c, status, APIResponse{
		Success: true,
		Data:    data,
		Message: defaultMessage(message, "success"),
	})
}

// SendError writes an error envelope with the given status code. Data is
// always omitted on errors.
func SendError(c *fiber.Ctx, status int, message string) error {
	return send(c, status, APIResponse{
		Success: false,
		Message: defaultMessage(message, "error"),
	})
}

func send(c *fiber.Ctx, status int, body APIResponse) error {
	return c.Status(status).JSON(body)
}

func defaultMessage(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}
