package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/debate-go-api/internal/utils"
)

// Auth role constants used by WithAuth helper.
const (
	AuthRoleAny       = "any"
	AuthRoleAdmin     = "admin"
	AuthRoleModerator = "moderator"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a handler with basic authentication/authorization guards.
// It is meant for routes mounted behind JWTOptional, where user locals may be absent.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser
	if role != AuthRoleAny {
		requireUser = true
	}

	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id")
		if requireUser && userID == nil {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		if role == AuthRoleAny {
			return handler(c)
		}

		currentRole := normalizeRoleValue(c.Locals("user_role"))
		switch role {
		case AuthRoleModerator:
			// admins moderate too
			if currentRole != AuthRoleModerator && currentRole != AuthRoleAdmin {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		default:
			if currentRole != role {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		}

		return handler(c)
	}
}
