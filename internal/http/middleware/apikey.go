package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// DashboardAPIKeyAuth guards the dashboard API with a bearer key checked
// against a bcrypt hash. An empty hash disables the check.
// Expects: Authorization: Bearer <api_key>
func DashboardAPIKeyAuth(keyHash string, logger *slog.Logger) fiber.Handler {
	if keyHash == "" {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Authorization header",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid Authorization header format. Expected: Bearer <api_key>",
			})
		}

		providedKey := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if providedKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "API key is empty",
			})
		}

		if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(providedKey)); err != nil {
			logger.Debug("Rejected dashboard API key", slog.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		return c.Next()
	}
}

// HashAPIKey returns the bcrypt hash to store in BLOGPULSE_DASHBOARD_API_KEY_HASH.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
