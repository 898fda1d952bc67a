package http

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// handleUpload stores a chat attachment and returns the media URL the
// client then embeds in a message. Stored names are prefixed with a uuid
// and a timestamp so uploads never collide.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}

	if err := os.MkdirAll(s.mediaDir, 0o755); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "media storage unavailable")
	}

	filename := fmt.Sprintf("%s_%d_%s", uuid.NewString(), time.Now().UTC().Unix(), filepath.Base(file.Filename))
	path := filepath.Join(s.mediaDir, filename)
	if err := c.SaveFile(file, path); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "saving upload failed")
	}

	// Sniff the real content type from the bytes, not the client header.
	detected, err := mimetype.DetectFile(path)
	contentType := ""
	if err == nil {
		contentType = detected.String()
	}

	return c.JSON(fiber.Map{
		"media_url":    "/media/chat/" + filename,
		"filename":     file.Filename,
		"content_type": contentType,
	})
}
