package http

import (
	"context"
	"time"

	"chatcore/domain/chat"
	"chatcore/domain/event"
	"chatcore/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

type createMessageRequest struct {
	ConversationID chat.ConversationID `json:"conversation_id"`
	Content        string              `json:"content"`
	ContentType    chat.ContentType    `json:"content_type"`
	MediaURL       string              `json:"media_url"`
}

type editMessageRequest struct {
	Content string `json:"content"`
}

// handleGetMessages returns the chronological page and, like the realtime
// path, acknowledges everything fetched for the reader.
func (s *Server) handleGetMessages(c *fiber.Ctx) error {
	user := currentUser(c)
	convID := chat.ConversationID(c.Params("id"))

	conv, err := s.chat.GetConversation(c.Context(), convID)
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	if !conv.HasParticipant(user) {
		return errors.MapToHTTPError(errors.ErrForbidden)
	}

	marked, err := s.chat.MarkConversationRead(c.Context(), convID, user)
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	s.publishConversationRead(c.Context(), convID, user, len(marked))

	msgs, err := s.chat.ListMessages(c.Context(), convID, c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	return c.JSON(lo.Map(msgs, func(m chat.Message, _ int) fiber.Map {
		return messageResponse(m)
	}))
}

func (s *Server) handleSearchMessages(c *fiber.Ctx) error {
	user := currentUser(c)
	convID := chat.ConversationID(c.Params("id"))
	query := c.Query("q")
	if query == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query parameter q is required")
	}

	conv, err := s.chat.GetConversation(c.Context(), convID)
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	if !conv.HasParticipant(user) {
		return errors.MapToHTTPError(errors.ErrForbidden)
	}

	msgs, err := s.chat.SearchMessages(c.Context(), convID, query, c.QueryInt("limit", 20))
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	return c.JSON(lo.Map(msgs, func(m chat.Message, _ int) fiber.Map {
		return messageResponse(m)
	}))
}

// handleCreateMessage is the REST fallback used when the websocket is
// unavailable; delivery to live sessions still goes through the router.
func (s *Server) handleCreateMessage(c *fiber.Ctx) error {
	var req createMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	m, err := s.chat.CreateMessage(c.Context(), chat.CreateMessageCommand{
		ConversationID: req.ConversationID,
		SenderID:       currentUser(c),
		Content:        req.Content,
		ContentType:    req.ContentType,
		MediaURL:       req.MediaURL,
	})
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	s.publishNewMessage(c.Context(), m)
	return c.Status(fiber.StatusCreated).JSON(messageResponse(m))
}

func (s *Server) handleEditMessage(c *fiber.Ctx) error {
	var req editMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	m, err := s.chat.EditMessage(c.Context(), chat.MessageID(c.Params("id")), currentUser(c), req.Content)
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	s.router.Broadcast(c.Context(), event.MessageEdited{Message: m})
	return c.JSON(messageResponse(m))
}

func (s *Server) handleDeleteMessage(c *fiber.Ctx) error {
	m, err := s.chat.GetMessage(c.Context(), chat.MessageID(c.Params("id")))
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	if m.SenderID != currentUser(c) {
		return errors.MapToHTTPError(errors.ErrForbidden)
	}
	if err := s.chat.DeleteMessage(c.Context(), m.ID); err != nil {
		return errors.MapToHTTPError(err)
	}
	s.router.Broadcast(c.Context(), event.MessageDeleted{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
	})
	return c.JSON(fiber.Map{"message": "Message deleted"})
}

func (s *Server) handleMarkMessageRead(c *fiber.Ctx) error {
	user := currentUser(c)
	m, changed, err := s.chat.MarkMessageRead(c.Context(), chat.MessageID(c.Params("id")), user)
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	if changed {
		s.publishRead(c.Context(), m, user)
	}
	return c.JSON(fiber.Map{"message": "Message marked as read"})
}

// handleReactToMessage broadcasts the reaction to the room without
// persisting anything.
func (s *Server) handleReactToMessage(c *fiber.Ctx) error {
	emoji := c.Query("emoji")
	if emoji == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query parameter emoji is required")
	}
	user := currentUser(c)

	m, err := s.chat.GetMessage(c.Context(), chat.MessageID(c.Params("id")))
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	conv, err := s.chat.GetConversation(c.Context(), m.ConversationID)
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	if !conv.HasParticipant(user) {
		return errors.MapToHTTPError(errors.ErrForbidden)
	}

	reaction := event.ReactionAdded{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		UserID:         user,
		Emoji:          emoji,
		ReactedAt:      time.Now().UTC(),
	}
	s.router.Broadcast(c.Context(), reaction)
	return c.JSON(reaction)
}

// publishNewMessage broadcasts the message to its room and refreshes the
// unread badge on every other participant's personal sessions.
func (s *Server) publishNewMessage(ctx context.Context, m chat.Message) {
	s.router.Broadcast(ctx, event.MessageCreated{Message: m})

	conv, err := s.chat.GetConversation(ctx, m.ConversationID)
	if err != nil {
		s.log.Warn("skipping unread badges, conversation lookup failed",
			"conversation_id", m.ConversationID, "error", err)
		return
	}
	for _, p := range conv.Participants {
		if p == m.SenderID {
			continue
		}
		unread, err := s.chat.UnreadCount(ctx, conv.ID, p)
		if err != nil {
			continue
		}
		s.router.NotifyUser(ctx, p, event.UnreadChanged{
			ConversationID: conv.ID,
			UserID:         p,
			Unread:         unread,
		})
	}
}

func (s *Server) publishRead(ctx context.Context, m chat.Message, user chat.UserID) {
	s.router.Broadcast(ctx, event.MessageRead{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		UserID:         user,
		ReadBy:         m.ReadBy,
	})
	s.publishUnread(ctx, m.ConversationID, user)
}

func (s *Server) publishConversationRead(ctx context.Context, conv chat.ConversationID, user chat.UserID, count int) {
	if count == 0 {
		return
	}
	s.router.Broadcast(ctx, event.ConversationRead{
		ConversationID: conv,
		UserID:         user,
		Count:          count,
	})
	s.publishUnread(ctx, conv, user)
}

func (s *Server) publishUnread(ctx context.Context, conv chat.ConversationID, user chat.UserID) {
	unread, err := s.chat.UnreadCount(ctx, conv, user)
	if err != nil {
		return
	}
	s.router.NotifyUser(ctx, user, event.UnreadChanged{
		ConversationID: conv,
		UserID:         user,
		Unread:         unread,
	})
}

func messageResponse(m chat.Message) fiber.Map {
	return fiber.Map{
		"id":              m.ID,
		"conversation_id": m.ConversationID,
		"sender_id":       m.SenderID,
		"content":         m.Content,
		"content_type":    m.ContentType,
		"media_url":       m.MediaURL,
		"is_deleted":      m.Deleted(),
		"read_by":         m.ReadBy,
		"edited_at":       m.EditedAt,
		"created_at":      m.CreatedAt,
	}
}
