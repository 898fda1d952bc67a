package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatcore/domain/chat"
	"chatcore/errors"
	"chatcore/repositories"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IChatService interface {
	CreateConversation(ctx context.Context, cmd chat.CreateConversationCommand) (chat.Conversation, error)
	GetOrCreateDirectConversation(ctx context.Context, a, b chat.UserID) (chat.Conversation, error)
	GetConversation(ctx context.Context, id chat.ConversationID) (chat.Conversation, error)
	UpdateConversation(ctx context.Context, id chat.ConversationID, actor chat.UserID, cmd chat.UpdateConversationCommand) (chat.Conversation, error)
	DeleteConversation(ctx context.Context, id chat.ConversationID) error
	ListConversations(ctx context.Context, user chat.UserID, limit, offset int, includeArchived bool) ([]ConversationSummary, error)
	SearchConversations(ctx context.Context, user chat.UserID, query string, limit int) ([]ConversationSummary, error)
	CreateMessage(ctx context.Context, cmd chat.CreateMessageCommand) (chat.Message, error)
	GetMessage(ctx context.Context, id chat.MessageID) (chat.Message, error)
	EditMessage(ctx context.Context, id chat.MessageID, actor chat.UserID, content string) (chat.Message, error)
	DeleteMessage(ctx context.Context, id chat.MessageID) error
	MarkMessageRead(ctx context.Context, id chat.MessageID, user chat.UserID) (chat.Message, bool, error)
	MarkConversationRead(ctx context.Context, conv chat.ConversationID, user chat.UserID) ([]chat.MessageID, error)
	UnreadCount(ctx context.Context, conv chat.ConversationID, user chat.UserID) (int, error)
	ListMessages(ctx context.Context, conv chat.ConversationID, limit, offset int) ([]chat.Message, error)
	SearchMessages(ctx context.Context, conv chat.ConversationID, query string, limit int) ([]chat.Message, error)
}

// ConversationSummary is the list-view projection: the conversation plus
// the derived fields every client list needs.
type ConversationSummary struct {
	Conversation  chat.Conversation
	LatestMessage *chat.Message
	UnreadCount   int
}

// ChatService owns every persistent mutation of conversations and
// messages. Each exported operation is a transaction boundary; event
// routing happens after the operation returns, never inside it.
type ChatService struct {
	log           *slog.Logger
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	index         repositories.IMessageIndex
}

func NewChatService(log *slog.Logger, conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository, index repositories.IMessageIndex) *ChatService {
	return &ChatService{
		log:           log,
		conversations: conversations,
		messages:      messages,
		index:         index,
	}
}

// CreateConversation normalizes the participant set (creator always
// included, duplicates removed) and persists the conversation as
// requested; a two-member non-group conversation created here is not
// deduplicated, only GetOrCreateDirectConversation is.
func (s *ChatService) CreateConversation(_ context.Context, cmd chat.CreateConversationCommand) (chat.Conversation, error) {
	now := time.Now().UTC()
	conv := chat.Conversation{
		ID:           chat.ConversationID(uuid.NewString()),
		Name:         cmd.Name,
		Description:  cmd.Description,
		IsGroup:      cmd.IsGroup,
		Participants: lo.Uniq(append([]chat.UserID{cmd.CreatorID}, cmd.ParticipantIDs...)),
		CreatedBy:    cmd.CreatorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.conversations.Create(conv); err != nil {
		return chat.Conversation{}, err
	}
	return conv, nil
}

// GetOrCreateDirectConversation resolves the unique direct conversation
// for an unordered user pair. Safe under concurrent calls: the repository
// serializes racing creates and the loser retries as a lookup.
func (s *ChatService) GetOrCreateDirectConversation(_ context.Context, a, b chat.UserID) (chat.Conversation, error) {
	conv, created, err := s.conversations.GetOrCreateDirect(a, b, func() chat.Conversation {
		now := time.Now().UTC()
		return chat.Conversation{
			ID:           chat.ConversationID(uuid.NewString()),
			IsGroup:      false,
			Participants: lo.Uniq([]chat.UserID{a, b}),
			CreatedBy:    a,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	})
	if err != nil {
		return chat.Conversation{}, err
	}
	if created {
		s.log.Info("direct conversation created", "conversation_id", conv.ID)
	}
	return conv, nil
}

// GetConversation treats soft-deleted conversations as missing.
func (s *ChatService) GetConversation(_ context.Context, id chat.ConversationID) (chat.Conversation, error) {
	conv, err := s.conversations.Get(id)
	if err != nil {
		return chat.Conversation{}, err
	}
	if conv.Deleted() {
		return chat.Conversation{}, fmt.Errorf("%w: conversation %s", errors.ErrNotFound, id)
	}
	return conv, nil
}

// UpdateConversation applies name/description/avatar changes inside one
// storage transaction. Only the creator may update; soft-deleted
// conversations read as missing.
func (s *ChatService) UpdateConversation(_ context.Context, id chat.ConversationID,
	actor chat.UserID, cmd chat.UpdateConversationCommand) (chat.Conversation, error) {
	return s.conversations.Mutate(id, func(conv *chat.Conversation) error {
		if conv.Deleted() {
			return fmt.Errorf("%w: conversation %s", errors.ErrNotFound, id)
		}
		if conv.CreatedBy != actor {
			return fmt.Errorf("%w: only the creator can update the conversation", errors.ErrForbidden)
		}
		if cmd.Name != nil {
			conv.Name = *cmd.Name
		}
		if cmd.Description != nil {
			conv.Description = *cmd.Description
		}
		if cmd.AvatarURL != nil {
			conv.AvatarURL = *cmd.AvatarURL
		}
		conv.UpdatedAt = time.Now().UTC()
		return nil
	})
}

// DeleteConversation soft-deletes. Idempotent: deleting twice succeeds.
func (s *ChatService) DeleteConversation(_ context.Context, id chat.ConversationID) error {
	_, err := s.conversations.Mutate(id, func(conv *chat.Conversation) error {
		if conv.Deleted() {
			return nil
		}
		now := time.Now().UTC()
		conv.DeletedAt = &now
		conv.UpdatedAt = now
		return nil
	})
	return err
}

func (s *ChatService) ListConversations(_ context.Context, user chat.UserID, limit, offset int, includeArchived bool) ([]ConversationSummary, error) {
	convs, err := s.conversations.ListForUser(user, limit, offset, includeArchived)
	if err != nil {
		return nil, err
	}
	return s.summarize(convs, user)
}

func (s *ChatService) SearchConversations(_ context.Context, user chat.UserID, query string, limit int) ([]ConversationSummary, error) {
	convs, err := s.conversations.SearchByName(user, query, limit)
	if err != nil {
		return nil, err
	}
	return s.summarize(convs, user)
}

func (s *ChatService) summarize(convs []chat.Conversation, user chat.UserID) ([]ConversationSummary, error) {
	summaries := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		latest, err := s.messages.Latest(conv.ID)
		if err != nil {
			return nil, err
		}
		unread, err := s.messages.CountUnread(conv.ID, user)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, ConversationSummary{
			Conversation:  conv,
			LatestMessage: latest,
			UnreadCount:   unread,
		})
	}
	return summaries, nil
}

// CreateMessage persists a message with the sender pre-marked as having
// read it, and bumps the conversation's updated-at so list views reorder.
func (s *ChatService) CreateMessage(ctx context.Context, cmd chat.CreateMessageCommand) (chat.Message, error) {
	conv, err := s.GetConversation(ctx, cmd.ConversationID)
	if err != nil {
		return chat.Message{}, err
	}
	if !conv.HasParticipant(cmd.SenderID) {
		return chat.Message{}, fmt.Errorf("%w: sender is not a participant", errors.ErrForbidden)
	}

	contentType := cmd.ContentType
	if contentType == "" {
		contentType = chat.ContentTypeText
	}
	now := time.Now().UTC()
	m := chat.Message{
		ID:             chat.MessageID(uuid.NewString()),
		ConversationID: cmd.ConversationID,
		SenderID:       cmd.SenderID,
		Content:        cmd.Content,
		ContentType:    contentType,
		MediaURL:       cmd.MediaURL,
		ReadBy:         []chat.UserID{cmd.SenderID},
		CreatedAt:      now,
	}
	if err := s.messages.Store(m); err != nil {
		return chat.Message{}, err
	}
	s.indexMessage(m)

	// The bump re-reads the record, so a deletion or edit committed since
	// the participant check above is never overwritten with a stale copy.
	if _, err := s.conversations.Mutate(conv.ID, func(c *chat.Conversation) error {
		if c.Deleted() {
			return nil
		}
		c.UpdatedAt = now
		return nil
	}); err != nil {
		// The message is committed; a failed bump only affects list order.
		s.log.Warn("failed to bump conversation updated-at", "conversation_id", conv.ID, "error", err)
	}
	return m, nil
}

func (s *ChatService) GetMessage(_ context.Context, id chat.MessageID) (chat.Message, error) {
	return s.messages.Get(id)
}

// EditMessage replaces the content and stamps edited-at inside one storage
// transaction, so a concurrent read receipt is never reverted by a stale
// copy. Only the original sender may edit; a soft-deleted message reads as
// missing.
func (s *ChatService) EditMessage(_ context.Context, id chat.MessageID, actor chat.UserID, content string) (chat.Message, error) {
	m, err := s.messages.Mutate(id, func(m *chat.Message) error {
		if m.Deleted() {
			return fmt.Errorf("%w: message %s", errors.ErrNotFound, id)
		}
		if m.SenderID != actor {
			return fmt.Errorf("%w: only the sender can edit a message", errors.ErrForbidden)
		}
		now := time.Now().UTC()
		m.Content = content
		m.EditedAt = &now
		return nil
	})
	if err != nil {
		return chat.Message{}, err
	}
	s.indexMessage(m)
	return m, nil
}

// DeleteMessage soft-deletes, keeping the stored content intact; blanking
// deleted content is a presentation concern downstream. Idempotent.
func (s *ChatService) DeleteMessage(_ context.Context, id chat.MessageID) error {
	m, err := s.messages.Mutate(id, func(m *chat.Message) error {
		if m.Deleted() {
			return nil
		}
		now := time.Now().UTC()
		m.DeletedAt = &now
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.index.Delete(m.ID); err != nil {
		s.log.Warn("failed to remove message from search index", "message_id", m.ID, "error", err)
	}
	return nil
}

// MarkMessageRead acknowledges one message for a user. Only participants
// may mark: the read-by set is monotone, so a stranger's insertion could
// never be undone.
func (s *ChatService) MarkMessageRead(ctx context.Context, id chat.MessageID, user chat.UserID) (chat.Message, bool, error) {
	m, err := s.messages.Get(id)
	if err != nil {
		return chat.Message{}, false, err
	}
	conv, err := s.GetConversation(ctx, m.ConversationID)
	if err != nil {
		return chat.Message{}, false, err
	}
	if !conv.HasParticipant(user) {
		return chat.Message{}, false, fmt.Errorf("%w: not a participant of this conversation", errors.ErrForbidden)
	}
	return s.messages.MarkRead(id, user)
}

func (s *ChatService) MarkConversationRead(ctx context.Context, conv chat.ConversationID, user chat.UserID) ([]chat.MessageID, error) {
	found, err := s.GetConversation(ctx, conv)
	if err != nil {
		return nil, err
	}
	if !found.HasParticipant(user) {
		return nil, fmt.Errorf("%w: not a participant of this conversation", errors.ErrForbidden)
	}
	return s.messages.MarkConversationRead(conv, user)
}

func (s *ChatService) UnreadCount(_ context.Context, conv chat.ConversationID, user chat.UserID) (int, error) {
	return s.messages.CountUnread(conv, user)
}

// ListMessages returns the conversation's messages in chronological
// reading order. Soft-deleted messages remain in the sequence, flagged.
func (s *ChatService) ListMessages(_ context.Context, conv chat.ConversationID, limit, offset int) ([]chat.Message, error) {
	return s.messages.List(conv, limit, offset)
}

// SearchMessages resolves index hits back to authoritative records,
// dropping anything deleted since it was indexed.
func (s *ChatService) SearchMessages(ctx context.Context, conv chat.ConversationID, query string, limit int) ([]chat.Message, error) {
	ids, err := s.index.Search(ctx, conv, query, limit)
	if err != nil {
		return nil, err
	}
	msgs := make([]chat.Message, 0, len(ids))
	for _, id := range ids {
		m, err := s.messages.Get(id)
		if err != nil {
			continue
		}
		if m.Deleted() {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// indexMessage is best-effort: the index is derived data, so an indexing
// failure is logged and never fails the committed operation.
func (s *ChatService) indexMessage(m chat.Message) {
	if err := s.index.Index(m); err != nil {
		s.log.Warn("failed to index message", "message_id", m.ID, "error", err)
	}
}
