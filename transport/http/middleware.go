package http

import (
	"strings"

	"chatcore/domain/chat"
	"chatcore/errors"

	"github.com/gofiber/fiber/v2"
)

const userIDKey = "user_id"

// requireAuth validates the bearer token and injects the user id into the
// request context. Unauthenticated requests never reach a handler.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return errors.MapToHTTPError(errors.ErrUnauthenticated)
	}
	token := strings.TrimPrefix(header, "Bearer ")

	userID, err := s.auth.VerifyToken(token)
	if err != nil {
		return errors.MapToHTTPError(errors.ErrUnauthenticated)
	}
	c.Locals(userIDKey, userID)
	return c.Next()
}

func currentUser(c *fiber.Ctx) chat.UserID {
	id, _ := c.Locals(userIDKey).(chat.UserID)
	return id
}
