package http

import (
	"chatcore/errors"

	"github.com/gofiber/fiber/v2"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	token, userID, err := s.auth.Register(req.Email, req.Password)
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":   token,
		"user_id": userID,
	})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	token, userID, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	return c.JSON(fiber.Map{
		"token":   token,
		"user_id": userID,
	})
}
