// middleware/auth.go
package middleware

import (
	"strings"

	"clan-wager-system/observability"
	"clan-wager-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	LocalUserID    = "user_id"
	LocalUserRoles = "user_roles"
	LocalCaller    = "caller"
)

// UserContextMiddleware reads the identity the gateway attaches to
// authenticated requests and rejects requests without one.
func UserContextMiddleware() fiber.Handler {
	log := observability.NewLogger("user_ctx")
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			log.Warn().Str("path", c.Path()).Msg("❌ X-User-ID required but missing")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID: request must come through gateway with auth context",
			})
		}
		setCaller(c, services.Caller{UserID: userID, Roles: parseRoles(c.Get("X-User-Roles"))})
		return c.Next()
	}
}

// RequireAdmin rejects callers that fail the admin predicate. It must run
// after UserContextMiddleware.
func RequireAdmin(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, err := services.IsAdmin(db.WithContext(c.UserContext()), CallerFrom(c))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal",
				"message": "failed to check admin access",
			})
		}
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "admin access required",
			})
		}
		return c.Next()
	}
}

// CallerFrom returns the identity attached by one of the auth middlewares.
func CallerFrom(c *fiber.Ctx) services.Caller {
	if caller, ok := c.Locals(LocalCaller).(services.Caller); ok {
		return caller
	}
	return services.Caller{}
}

func setCaller(c *fiber.Ctx, caller services.Caller) {
	c.Locals(LocalUserID, caller.UserID)
	c.Locals(LocalUserRoles, caller.Roles)
	c.Locals(LocalCaller, caller)
}

func parseRoles(raw string) []string {
	var roles []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
