package http

import (
	"chatcore/domain/chat"
	"chatcore/domain/event"
	"chatcore/errors"
	"chatcore/services"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

type createConversationRequest struct {
	ParticipantIDs []chat.UserID `json:"participant_ids"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	IsGroup        bool          `json:"is_group"`
}

type updateConversationRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	AvatarURL   *string `json:"avatar_url"`
}

func (s *Server) handleListConversations(c *fiber.Ctx) error {
	summaries, err := s.chat.ListConversations(c.Context(), currentUser(c),
		c.QueryInt("limit", 50), c.QueryInt("offset", 0), c.QueryBool("include_archived", false))
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	return c.JSON(lo.Map(summaries, func(item services.ConversationSummary, _ int) fiber.Map {
		return summaryResponse(item)
	}))
}

func (s *Server) handleSearchConversations(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query parameter q is required")
	}
	summaries, err := s.chat.SearchConversations(c.Context(), currentUser(c), query, c.QueryInt("limit", 20))
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	return c.JSON(lo.Map(summaries, func(item services.ConversationSummary, _ int) fiber.Map {
		return summaryResponse(item)
	}))
}

func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	user := currentUser(c)
	conv, err := s.chat.GetConversation(c.Context(), chat.ConversationID(c.Params("id")))
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	if !conv.HasParticipant(user) {
		return errors.MapToHTTPError(errors.ErrForbidden)
	}
	unread, err := s.chat.UnreadCount(c.Context(), conv.ID, user)
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	return c.JSON(conversationResponse(conv, unread))
}

func (s *Server) handleCreateConversation(c *fiber.Ctx) error {
	var req createConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	conv, err := s.chat.CreateConversation(c.Context(), chat.CreateConversationCommand{
		ParticipantIDs: req.ParticipantIDs,
		Name:           req.Name,
		Description:    req.Description,
		IsGroup:        req.IsGroup,
		CreatorID:      currentUser(c),
	})
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	s.router.NotifyParticipants(c.Context(), conv, event.ConversationCreated{Conv: conv})
	return c.Status(fiber.StatusCreated).JSON(conversationResponse(conv, 0))
}

func (s *Server) handleUpdateConversation(c *fiber.Ctx) error {
	var req updateConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	conv, err := s.chat.UpdateConversation(c.Context(), chat.ConversationID(c.Params("id")),
		currentUser(c), chat.UpdateConversationCommand{
			Name:        req.Name,
			Description: req.Description,
			AvatarURL:   req.AvatarURL,
		})
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	s.router.NotifyParticipants(c.Context(), conv, event.ConversationUpdated{Conv: conv})
	return c.JSON(conversationResponse(conv, 0))
}

func (s *Server) handleDeleteConversation(c *fiber.Ctx) error {
	user := currentUser(c)
	conv, err := s.chat.GetConversation(c.Context(), chat.ConversationID(c.Params("id")))
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	if !conv.HasParticipant(user) {
		return errors.MapToHTTPError(errors.ErrForbidden)
	}
	if err := s.chat.DeleteConversation(c.Context(), conv.ID); err != nil {
		return errors.MapToHTTPError(err)
	}
	s.router.NotifyParticipants(c.Context(), conv, event.ConversationDeleted{ConversationID: conv.ID})
	return c.JSON(fiber.Map{"message": "Conversation deleted"})
}

func (s *Server) handleGetOrCreateDM(c *fiber.Ctx) error {
	conv, err := s.chat.GetOrCreateDirectConversation(c.Context(),
		currentUser(c), chat.UserID(c.Params("user_id")))
	if err != nil {
		return errors.MapToHTTPError(err)
	}
	return c.JSON(conversationResponse(conv, 0))
}

func conversationResponse(conv chat.Conversation, unread int) fiber.Map {
	return fiber.Map{
		"id":           conv.ID,
		"name":         conv.Name,
		"description":  conv.Description,
		"avatar_url":   conv.AvatarURL,
		"is_group":     conv.IsGroup,
		"participants": conv.Participants,
		"created_by":   conv.CreatedBy,
		"unread_count": unread,
		"created_at":   conv.CreatedAt,
		"updated_at":   conv.UpdatedAt,
	}
}

func summaryResponse(s services.ConversationSummary) fiber.Map {
	resp := conversationResponse(s.Conversation, s.UnreadCount)
	if s.LatestMessage != nil {
		resp["latest_message"] = messageResponse(*s.LatestMessage)
	}
	return resp
}
