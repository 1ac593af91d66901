package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/scribesync/api/internal/auth"
	"github.com/scribesync/api/pkg/response"
)

// AuthMiddleware authenticates automation clients. A request passes with
// either the static scheduler token or an HMAC-signed JWT.
type AuthMiddleware struct {
	schedulerToken string
	jwtSecret      string
}

func NewAuthMiddleware(schedulerToken, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		schedulerToken: schedulerToken,
		jwtSecret:      jwtSecret,
	}
}

// Authenticate validates the bearer credential from the Authorization header
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		credential := parts[1]

		if m.schedulerToken != "" &&
			subtle.ConstantTimeCompare([]byte(credential), []byte(m.schedulerToken)) == 1 {
			c.Locals("component", "scheduler")
			return c.Next()
		}

		if m.jwtSecret != "" {
			claims, err := auth.ValidateToken(credential, m.jwtSecret)
			if err != nil {
				return response.Unauthorized(c, "Invalid or expired token")
			}
			c.Locals("component", claims.Component)
			c.Locals("claims", claims)
			return c.Next()
		}

		return response.Unauthorized(c, "Authentication not configured")
	}
}

// GetComponent extracts the authenticated component name from context
func GetComponent(c *fiber.Ctx) string {
	if component, ok := c.Locals("component").(string); ok {
		return component
	}
	return ""
}
