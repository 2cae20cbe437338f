package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

// NewApp builds the Fiber application serving the payment API
func NewApp(h *Handler, apiToken string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "roomsplit-payments",
		DisableStartupMessage: true,
	})
	app.Use(logger.New())

	RegisterRoutes(app, h, AuthRequired(apiToken))
	return app
}

// RegisterRoutes mounts the payment endpoints on app
func RegisterRoutes(app *fiber.App, h *Handler, authMiddleware fiber.Handler) {
	rooms := app.Group("/rooms", authMiddleware)
	rooms.Get("/:roomId/payment-methods", h.ListPaymentMethods)
	rooms.Post("/:roomId/transactions", h.Initiate)

	t := app.Group("/transactions", authMiddleware)
	t.Get("/:id", h.Get)
	t.Post("/:id/confirm", h.Confirm)
	t.Post("/:id/cancel", h.Cancel)
}

// AuthRequired rejects requests whose Authorization header does not carry the API token.
// Both "Bearer <token>" and the bare token are accepted.
func AuthRequired(apiToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get(fiber.HeaderAuthorization)
		if auth == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != apiToken {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}

		return c.Next()
	}
}
