package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/adityavishwakarma159/CampusConnect/internal/auth"
	"github.com/adityavishwakarma159/CampusConnect/internal/directory"
	"github.com/adityavishwakarma159/CampusConnect/internal/models"
)

const localUser = "user"

// JWTAuthMiddleware validates the bearer token and resolves the caller
// against the directory, so handlers always see a full user record.
func JWTAuthMiddleware(jv *auth.Validator, dir directory.Directory) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing auth"})
		}
		subject, err := jv.Validate(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		user, err := directory.ResolveSubject(c.Context(), dir, subject)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unknown subject"})
		}
		c.Locals(localUser, user)
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) *models.User {
	return c.Locals(localUser).(*models.User)
}
