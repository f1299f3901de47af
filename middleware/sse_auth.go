// middleware/sse_auth.go
package middleware

import (
	"context"
	"strings"

	"clan-wager-system/observability"
	"clan-wager-system/services"

	"github.com/gofiber/fiber/v2"
)

const LocalDeviceID = "device_id"

// TokenValidator is satisfied by services.AuthServiceClient.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken, deviceID string) (*services.ValidateResponse, error)
}

// SSEAuthMiddleware authenticates EventSource connections, which cannot set
// headers, from the `token` and `device_id` query parameters.
//
// Usage:
//
//	app.Get("/stream/ledger", middleware.SSEAuthMiddleware(authClient), ledger.StreamUserEntriesSSE)
func SSEAuthMiddleware(validator TokenValidator) fiber.Handler {
	log := observability.NewLogger("sse_auth")
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		deviceID := strings.TrimSpace(c.Query("device_id"))
		if accessToken == "" || deviceID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token or device_id in query",
			})
		}

		resp, err := validator.ValidateToken(c.UserContext(), accessToken, deviceID)
		if err != nil {
			log.Warn().Err(err).Str("device_id", deviceID).Msg("❌ stream token rejected")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		setCaller(c, resp.Caller())
		c.Locals(LocalDeviceID, resp.DeviceID)
		log.Debug().Str("user_id", resp.UserID).Str("device_id", resp.DeviceID).Msg("✅ stream authenticated")
		return c.Next()
	}
}
