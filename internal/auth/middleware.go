package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	UserHeader = "X-User-ID"
	userKey    = "user_id"
)

// UserMiddleware reads the caller identity from the X-User-ID header and
// stores it in locals. Identity is trusted as sent.
func UserMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get(UserHeader))
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing "+UserHeader+" header")
		}
		c.Locals(userKey, userID)
		return c.Next()
	}
}

// UserID returns the identity stored by UserMiddleware.
func UserID(c *fiber.Ctx) string {
	userID, _ := c.Locals(userKey).(string)
	return userID
}

// LocalUser reads the identity through a plain locals accessor, such as the
// one of an upgraded websocket connection.
func LocalUser(locals func(key string) interface{}) string {
	userID, _ := locals(userKey).(string)
	return userID
}
