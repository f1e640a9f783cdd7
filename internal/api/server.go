package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"

	"github.com/adityavishwakarma159/CampusConnect/internal/apperr"
	"github.com/adityavishwakarma159/CampusConnect/internal/auth"
	"github.com/adityavishwakarma159/CampusConnect/internal/directory"
	"github.com/adityavishwakarma159/CampusConnect/internal/metrics"
	"github.com/adityavishwakarma159/CampusConnect/internal/service"
	"github.com/adityavishwakarma159/CampusConnect/internal/ws"
)

// NewServer wires the fiber app: REST routes under /api/chat, the
// websocket endpoint, health and metrics.
func NewServer(svc *service.ChatService, wsrv *ws.Server, jv *auth.Validator, dir directory.Directory) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Use(fiberlogger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", metrics.Handler())

	h := newHandler(svc)

	api := app.Group("/api/chat", JWTAuthMiddleware(jv, dir))
	api.Get("/users", h.chatUsers)
	api.Get("/conversations", h.conversations)
	api.Get("/messages/:otherUserId", h.history)
	api.Post("/messages", h.sendDirect)
	api.Post("/mark-read/:otherUserId", h.markRead)
	api.Get("/groups/:departmentId", h.groupHistory)
	api.Post("/groups/:departmentId/messages", h.sendGroup)
	api.Get("/groups/:departmentId/participants", h.groupParticipants)
	api.Get("/groups/:departmentId/permissions", h.permissions)

	app.Get("/ws", websocket.New(wsrv.Handler()))

	return app
}

// errorHandler maps the error taxonomy onto HTTP statuses. Everything
// else is a 500 with a generic body.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, apperr.ErrPermissionDenied):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, apperr.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
