package utils

import "github.com/gofiber/fiber/v2"

func JSONSuccess(c *fiber.Ctx, status int, payload interface{}) error {
	return c.Status(status).JSON(fiber.Map{"status": "ok", "data": payload})
}

// JSONError writes the error envelope. details is omitted when nil.
func JSONError(c *fiber.Ctx, status int, msg string, details interface{}) error {
	body := fiber.Map{"error": msg}
	if details != nil {
		body["details"] = details
	}
	return c.Status(status).JSON(body)
}
